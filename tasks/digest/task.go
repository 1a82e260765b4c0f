package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/news-digest/internal/config"
	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
	"github.com/temirov/news-digest/internal/roles"
	"github.com/temirov/news-digest/internal/tools"
)

// Config is the mapped digest recipe.
type Config = config.DigestConfig

const (
	taskName = "digest"

	shapeTopic        = "topic"
	shapeItems        = "news items"
	shapeDigestItems  = "digest items"
	shapeChatReceipt  = "chat receipt"
	shapeSheetReceipt = "sheet receipt"

	missingRoleErrorFormat     = "task %s names unknown role %q"
	toolNotDeclaredErrorFormat = "role %s does not declare tool %q"
	toolContractErrorFormat    = "tool %q does not implement %s"
	encodeSearchErrorFormat    = "encode search results: %w"
	encodeItemsErrorFormat     = "encode items: %w"
	unknownStageErrorFormat    = "unknown stage %q"
	undecodableReplyReason     = "could not be decoded from the model reply"
)

// Searcher, Poster and Appender are the tool contracts the stages call.
type Searcher interface {
	Search(ctx context.Context, topic string) (tools.SearchResult, error)
}

type Poster interface {
	Post(ctx context.Context, items []news.Item, channel string) (tools.ChatReceipt, error)
}

type Appender interface {
	Append(ctx context.Context, items []news.Item) (tools.SheetReceipt, error)
}

// Dependencies are the collaborators constructed by the caller for one process.
type Dependencies struct {
	Client       pipeline.LLMClient
	Registry     *pipeline.Registry
	Logger       *zap.Logger
	Model        string
	ModelTimeout time.Duration
	Now          func() time.Time
}

type Task struct {
	cfg      Config
	deps     Dependencies
	catalog  roles.Catalog
	tasks    map[pipeline.StageID]config.DigestTask
	stages   []pipeline.Stage
	searcher Searcher
	poster   Poster
	appender Appender
}

// New validates the recipe against the tool registry and assembles the stage list.
// Every failure here is a configuration error reported before any network call.
func New(cfg Config, deps Dependencies) (*Task, error) {
	catalog, catalogErr := roles.NewCatalog(cfg.Roles)
	if catalogErr != nil {
		return nil, pipeline.MalformedSetting("roles", catalogErr)
	}

	tasksByStage := make(map[pipeline.StageID]config.DigestTask, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		tasksByStage[pipeline.StageID(strings.TrimSpace(task.Name))] = task
	}

	stages := []pipeline.Stage{
		{ID: pipeline.StageFetch, Tool: tools.SearchToolName, Input: shapeTopic, Output: shapeItems},
		{ID: pipeline.StageSummarize, Input: shapeItems, Output: shapeDigestItems},
		{ID: pipeline.StageNotify, Tool: tools.ChatToolName, Input: shapeDigestItems, Output: shapeChatReceipt},
		{ID: pipeline.StageLog, Tool: tools.SheetToolName, Input: shapeDigestItems, Output: shapeSheetReceipt},
	}

	registry := deps.Registry
	if registry == nil {
		registry = pipeline.NewRegistry()
	}
	boundTools := map[string]pipeline.Tool{}
	for index := range stages {
		stage := &stages[index]
		task, found := tasksByStage[stage.ID]
		if !found {
			return nil, pipeline.MissingSetting(fmt.Sprintf("tasks.%s", stage.ID))
		}
		role, found := catalog.Lookup(task.Role)
		if !found {
			return nil, pipeline.MalformedSetting(fmt.Sprintf("tasks.%s.role", stage.ID), fmt.Errorf(missingRoleErrorFormat, task.Name, task.Role))
		}
		stage.Role = role.Name

		bound, bindErr := registry.Bind(role.Name, role.Tools)
		if bindErr != nil {
			return nil, bindErr
		}
		for _, tool := range bound {
			boundTools[tool.Name()] = tool
		}
		if stage.Tool != "" && !role.HasTool(stage.Tool) {
			return nil, pipeline.MalformedSetting(fmt.Sprintf("roles.%s.tools", role.Name), fmt.Errorf(toolNotDeclaredErrorFormat, role.Name, stage.Tool))
		}
	}

	searcher, searcherErr := toolAs[Searcher](boundTools, tools.SearchToolName, "Search")
	if searcherErr != nil {
		return nil, searcherErr
	}
	poster, posterErr := toolAs[Poster](boundTools, tools.ChatToolName, "Post")
	if posterErr != nil {
		return nil, posterErr
	}
	appender, appenderErr := toolAs[Appender](boundTools, tools.SheetToolName, "Append")
	if appenderErr != nil {
		return nil, appenderErr
	}

	return &Task{
		cfg:      cfg,
		deps:     deps,
		catalog:  catalog,
		tasks:    tasksByStage,
		stages:   stages,
		searcher: searcher,
		poster:   poster,
		appender: appender,
	}, nil
}

func toolAs[T any](bound map[string]pipeline.Tool, name string, contract string) (T, error) {
	var zero T
	tool, found := bound[name]
	if !found {
		return zero, pipeline.MalformedSetting(fmt.Sprintf("tools.%s", name), fmt.Errorf(toolContractErrorFormat, name, contract))
	}
	typed, ok := tool.(T)
	if !ok {
		return zero, pipeline.MalformedSetting(fmt.Sprintf("tools.%s", name), fmt.Errorf(toolContractErrorFormat, name, contract))
	}
	return typed, nil
}

func (t *Task) Name() string { return taskName }

func (t *Task) Stages() []pipeline.Stage {
	return append([]pipeline.Stage(nil), t.stages...)
}

// Topic builds the run parameters from the recipe topic and the clock.
func (t *Task) Topic() news.Topic {
	return news.Topic{
		Topic:       t.cfg.Topic,
		CurrentYear: strconv.Itoa(t.now().Year()),
	}
}

func (t *Task) Perform(ctx context.Context, stage pipeline.Stage, state pipeline.State) (pipeline.Output, error) {
	switch stage.ID {
	case pipeline.StageFetch:
		return t.fetch(ctx, stage, state)
	case pipeline.StageSummarize:
		return t.summarize(ctx, stage, state)
	case pipeline.StageNotify:
		return t.notify(ctx, stage, state)
	case pipeline.StageLog:
		return t.log(ctx, stage, state)
	default:
		return pipeline.Output{}, fmt.Errorf(unknownStageErrorFormat, stage.ID)
	}
}

func (t *Task) fetch(ctx context.Context, stage pipeline.Stage, state pipeline.State) (pipeline.Output, error) {
	searchResult, searchErr := t.searcher.Search(ctx, state.Topic.Topic)
	if searchErr != nil {
		return pipeline.Output{}, searchErr
	}
	encodedResult, encodeErr := json.Marshal(searchResult)
	if encodeErr != nil {
		return pipeline.Output{}, fmt.Errorf(encodeSearchErrorFormat, encodeErr)
	}

	reply, items, askErr := t.askForItems(ctx, stage, state.Topic, []string{string(encodedResult)})
	if askErr != nil {
		return pipeline.Output{}, askErr
	}
	return pipeline.Output{Items: items, Raw: searchResult, Text: reply}, nil
}

// summarize skips the model when nothing was fetched so an empty run stays empty.
func (t *Task) summarize(ctx context.Context, stage pipeline.Stage, state pipeline.State) (pipeline.Output, error) {
	fetched := state.Items()
	if len(fetched) == 0 {
		return pipeline.Output{Items: []news.Item{}}, nil
	}
	encodedItems, encodeErr := news.EncodeItems(fetched)
	if encodeErr != nil {
		return pipeline.Output{}, fmt.Errorf(encodeItemsErrorFormat, encodeErr)
	}

	reply, items, askErr := t.askForItems(ctx, stage, state.Topic, []string{encodedItems})
	if askErr != nil {
		return pipeline.Output{}, askErr
	}
	return pipeline.Output{Items: items, Text: reply}, nil
}

// notify and log act deterministically; their roles only record the rendered task.
func (t *Task) notify(ctx context.Context, stage pipeline.Stage, state pipeline.State) (pipeline.Output, error) {
	items := state.Items()
	receipt, postErr := t.poster.Post(ctx, items, t.cfg.Channel)
	if postErr != nil {
		return pipeline.Output{}, postErr
	}
	t.worker(stage.Role, state.Topic).Record(Describe(t.tasks[stage.ID], state.Topic),
		zap.String("status", receipt.Status), zap.Int("items", receipt.Count))
	return pipeline.Output{
		Items:   items,
		Receipt: &pipeline.Receipt{Status: receipt.Status, Count: int64(receipt.Count)},
	}, nil
}

func (t *Task) log(ctx context.Context, stage pipeline.Stage, state pipeline.State) (pipeline.Output, error) {
	items := StampDates(state.Items(), t.now())
	receipt, appendErr := t.appender.Append(ctx, items)
	if appendErr != nil {
		return pipeline.Output{}, appendErr
	}
	t.worker(stage.Role, state.Topic).Record(Describe(t.tasks[stage.ID], state.Topic),
		zap.String("status", receipt.Status), zap.Int64("rows", receipt.RowsAdded))
	return pipeline.Output{
		Items:   items,
		Receipt: &pipeline.Receipt{Status: receipt.Status, Count: receipt.RowsAdded},
	}, nil
}

func (t *Task) askForItems(ctx context.Context, stage pipeline.Stage, topic news.Topic, priorOutputs []string) (string, []news.Item, error) {
	task := t.tasks[stage.ID]
	worker := t.worker(stage.Role, topic)

	callCtx := ctx
	if t.deps.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.deps.ModelTimeout)
		defer cancel()
	}

	reply, executeErr := worker.Execute(callCtx, Describe(task, topic), priorOutputs, news.ItemsSchema)
	if executeErr != nil {
		return "", nil, executeErr
	}
	items, decodeErr := news.DecodeItems(reply)
	if decodeErr != nil {
		return "", nil, &pipeline.ValidationError{Field: "items", Index: -1, Reason: undecodableReplyReason + ": " + decodeErr.Error()}
	}
	return reply, items, nil
}

func (t *Task) worker(roleName string, topic news.Topic) roles.Worker {
	role, _ := t.catalog.Lookup(roleName)
	role.Purpose = Render(role.Purpose, topic)
	role.Backstory = Render(role.Backstory, topic)
	return roles.Worker{
		Role:       role,
		Client:     t.deps.Client,
		Logger:     t.deps.Logger,
		Model:      t.deps.Model,
		SchemaName: news.ItemsSchemaName,
	}
}

func (t *Task) now() time.Time {
	if t.deps.Now != nil {
		return t.deps.Now()
	}
	return time.Now()
}

// Render substitutes {topic} and {current_year} in a template.
func Render(template string, topic news.Topic) string {
	vars := topic.Vars()
	replacements := make([]string, 0, 2*len(vars))
	for key, value := range vars {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

// Describe renders a task description together with its expected output.
func Describe(task config.DigestTask, topic news.Topic) string {
	description := strings.TrimSpace(Render(task.Description, topic))
	if expected := strings.TrimSpace(Render(task.ExpectedOutput, topic)); expected != "" {
		description += "\n\nExpected output: " + expected
	}
	return description
}

// StampDates fills missing item dates with the run date. The input is not modified.
func StampDates(items []news.Item, runTime time.Time) []news.Item {
	stamped := news.Clone(items)
	runDate := runTime.Format(time.DateOnly)
	for index := range stamped {
		if strings.TrimSpace(stamped[index].Date) == "" {
			stamped[index].Date = runDate
		}
	}
	return stamped
}
