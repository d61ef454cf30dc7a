package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cmpulse/internal/calculator"
	"cmpulse/internal/merger"
	"cmpulse/internal/model"
	"cmpulse/internal/parser"
	"cmpulse/internal/persister"
	"cmpulse/internal/telemetry"
)

// 进度事件类型
const (
	EventStart     = "start"
	EventFileStart = "file_start"
	EventFileDone  = "file_done"
	EventWarning   = "warning"
	EventMerge     = "merge"
	EventPersist   = "persist"
	EventDone      = "done"
	EventError     = "error"
)

// 导入触发方式
const (
	TriggerUpload = "upload"
	TriggerFolder = "folder"
	TriggerCLI    = "cli"
)

// Options 协调器选项
type Options struct {
	Workers         int
	MaxFiles        int
	MaxFileBytes    int64
	HeaderScanRows  int
	KeepSummaryRows bool
	SummaryMarkers  []string
}

// Coordinator 导入协调器：读取 -> 识别 -> 转换 -> 合并 -> 校验 -> 持久化
type Coordinator struct {
	persister *persister.Persister
	validator *merger.Validator
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// NewCoordinator 创建导入协调器
func NewCoordinator(repo persister.Repository, logger *zap.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Coordinator{
		persister: persister.New(repo, logger, persister.Options{Workers: opts.Workers}),
		validator: merger.NewValidator(),
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FileInput 待导入文件；Path 与 Reader 二选一
type FileInput struct {
	Name      string
	Path      string
	Reader    io.Reader
	Size      int64
	Source    model.SourceType // 为空时按表头识别
	Overrides model.ColumnMapping
}

// RunOptions 单次导入参数
type RunOptions struct {
	Trigger string
	Files   []FileInput
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// fileOutcome 单个文件的处理结果
type fileOutcome struct {
	name     string
	source   model.SourceType
	result   *parser.TransformResult
	rejected *model.RejectedRow // 空文件/无法解析
	errors   []string
}

// Import 异步执行导入，返回进度通道；最后一个事件为 done 或 error
func (c *Coordinator) Import(ctx context.Context, opts RunOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)

		report, err := c.run(ctx, opts, progressChan)
		if err != nil {
			c.sendFinal(ctx, progressChan, ProgressEvent{
				Type:      EventError,
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			return
		}
		c.sendFinal(ctx, progressChan, ProgressEvent{
			Type:      EventDone,
			Message:   report.Summary(),
			Data:      report,
			Timestamp: time.Now(),
		})
	}()

	return progressChan
}

// Run 同步执行导入；仅致命前置条件（如缺少评分配置）返回 error
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (*model.IngestionReport, error) {
	return c.run(ctx, opts, nil)
}

func (c *Coordinator) run(ctx context.Context, opts RunOptions, progress chan ProgressEvent) (*model.IngestionReport, error) {
	start := c.now()
	trigger := opts.Trigger
	if trigger == "" {
		trigger = TriggerUpload
	}

	telemetry.RunsInFlight.Inc()
	defer telemetry.RunsInFlight.Dec()

	cfg, err := c.persister.ScoringConfig(ctx)
	if err != nil {
		telemetry.RecordRun(trigger, "fatal", time.Since(start).Seconds())
		c.logger.Error("ingestion aborted", zap.Error(err))
		return nil, err
	}

	report := &model.IngestionReport{
		RunID:        uuid.NewString(),
		Timestamp:    start,
		Sources:      []model.SourceReport{},
		Coverage:     map[string]int{},
		StatusCounts: map[model.MetricStatus]int{},
		Errors:       []string{},
	}

	files := opts.Files
	if c.opts.MaxFiles > 0 && len(files) > c.opts.MaxFiles {
		report.AddErrorf("too many files: %d given, only the first %d processed", len(files), c.opts.MaxFiles)
		files = files[:c.opts.MaxFiles]
	}

	c.sendProgress(progress, ProgressEvent{
		Type:      EventStart,
		Message:   fmt.Sprintf("ingesting %d file(s)", len(files)),
		Data:      map[string]any{"runId": report.RunID, "files": len(files)},
		Timestamp: time.Now(),
	})

	outcomes := c.transformAll(ctx, files, start, progress)
	if err := ctx.Err(); err != nil {
		report.AddErrorf("run cancelled: %v", err)
	}

	results := c.collect(report, outcomes)

	mergeRes := merger.MergeAll(results)
	report.Coverage = mergeRes.Coverage
	report.MentorCount = mergeRes.MentorCount

	validation := c.validator.Validate(mergeRes.Merged)
	report.Invalid = validation.Invalid
	c.sendProgress(progress, ProgressEvent{
		Type:    EventMerge,
		Message: fmt.Sprintf("merged %d record(s), %d invalid", len(mergeRes.Merged), len(validation.Invalid)),
		Data: map[string]any{
			"merged":   len(mergeRes.Merged),
			"valid":    len(validation.Valid),
			"invalid":  len(validation.Invalid),
			"coverage": mergeRes.Coverage,
		},
		Timestamp: time.Now(),
	})

	persisted, err := c.persister.Persist(ctx, validation.Valid)
	if err != nil {
		report.AddErrorf("%v", err)
	}
	if persisted != nil {
		c.applyPersistResult(report, persisted)
	}
	c.sendProgress(progress, ProgressEvent{
		Type:      EventPersist,
		Message:   fmt.Sprintf("created %d, updated %d, skipped %d", report.Totals.Created, report.Totals.Updated, report.Totals.SkippedDuplicate),
		Data:      report.Totals,
		Timestamp: time.Now(),
	})

	report.StatusCounts = calculator.StatusCounts(validation.Valid, *cfg)
	report.Duration = time.Since(start).Milliseconds()

	run := &model.ImportRun{
		ID:         report.RunID,
		Source:     trigger,
		Files:      fileNames(files),
		Totals:     report.Totals,
		Errors:     report.Errors,
		Coverage:   report.Coverage,
		DurationMs: report.Duration,
		CreatedAt:  start,
	}
	if err := c.persister.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		report.AddErrorf("%v", err)
	}

	status := "ok"
	if len(report.Errors) > 0 {
		status = "partial"
	}
	telemetry.RecordRun(trigger, status, time.Since(start).Seconds())
	c.logger.Info("ingestion finished",
		zap.String("run_id", report.RunID),
		zap.String("trigger", trigger),
		zap.Int("files", report.Totals.FilesProcessed),
		zap.Int("received", report.Totals.Received),
		zap.Int("accepted", report.Totals.Accepted),
		zap.Int("rejected", report.Totals.Rejected),
		zap.Int("created", report.Totals.Created),
		zap.Int("updated", report.Totals.Updated),
		zap.Int("skipped_duplicate", report.Totals.SkippedDuplicate),
		zap.Int("errors", len(report.Errors)),
		zap.Int64("duration_ms", report.Duration),
	)

	return report, nil
}

// transformAll 并发读取与转换文件；结果按输入顺序返回
func (c *Coordinator) transformAll(ctx context.Context, files []FileInput, now time.Time, progress chan ProgressEvent) []fileOutcome {
	outcomes := make([]fileOutcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			c.sendProgress(progress, ProgressEvent{
				Type:      EventFileStart,
				Message:   fmt.Sprintf("processing %s", f.Name),
				Data:      map[string]string{"file": f.Name},
				Timestamp: time.Now(),
			})
			outcomes[i] = c.transformFile(f, now)
			c.reportFile(outcomes[i], progress)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// transformFile 单个文件：读取首个工作表、识别来源、转换；失败只影响该文件
func (c *Coordinator) transformFile(f FileInput, now time.Time) (out fileOutcome) {
	out = fileOutcome{name: f.Name, source: f.Source}
	defer func() {
		if r := recover(); r != nil {
			out.result = nil
			out.errors = append(out.errors, fmt.Sprintf("file %s: transform failed: %v", f.Name, r))
		}
	}()

	sheet, err := c.readFile(f)
	if sheet != nil && out.source == model.SourceNone {
		out.source = parser.DetectSourceType(sheet.Headers)
	}
	if err != nil {
		if out.source == model.SourceNone {
			out.errors = append(out.errors, fmt.Sprintf("file %s: %v", f.Name, err))
			return out
		}
		out.rejected = &model.RejectedRow{File: f.Name, Row: 0, Reason: err.Error()}
		return out
	}
	if out.source == model.SourceNone {
		out.errors = append(out.errors, fmt.Sprintf("file %s: source type undetected", f.Name))
		return out
	}

	res, err := parser.Transform(out.source, sheet, parser.TransformOptions{
		Overrides:       f.Overrides,
		Now:             now,
		KeepSummaryRows: c.opts.KeepSummaryRows,
		SummaryMarkers:  c.opts.SummaryMarkers,
	})
	if err != nil {
		out.errors = append(out.errors, fmt.Sprintf("file %s: %v", f.Name, err))
		return out
	}
	if len(res.UnmappedRequired) > 0 {
		out.errors = append(out.errors, fmt.Sprintf("file %s (%s): missing required columns: %s",
			f.Name, out.source, joinFields(res.UnmappedRequired)))
	}
	out.result = res
	return out
}

// readFile 按大小上限读取文件内容并解析首个工作表
func (c *Coordinator) readFile(f FileInput) (*parser.Sheet, error) {
	readOpts := parser.ReadOptions{HeaderScanRows: c.opts.HeaderScanRows}

	if !parser.SupportedExt(f.Name) {
		return nil, fmt.Errorf("%w: %s", parser.ErrUnsupportedFile, f.Name)
	}

	r := f.Reader
	if r == nil {
		if f.Path == "" {
			return nil, errors.New("no file content")
		}
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer fh.Close()
		r = fh
	}

	if c.opts.MaxFileBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, c.opts.MaxFileBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		if int64(len(data)) > c.opts.MaxFileBytes {
			return nil, fmt.Errorf("file exceeds %d bytes", c.opts.MaxFileBytes)
		}
		r = bytes.NewReader(data)
	}

	return parser.ReadSheet(f.Name, r, readOpts)
}

// reportFile 单文件日志、指标与进度
func (c *Coordinator) reportFile(out fileOutcome, progress chan ProgressEvent) {
	source := string(out.source)
	if source == "" {
		source = "unknown"
	}

	switch {
	case out.result != nil:
		telemetry.RecordFile(source, "ok", len(out.result.Accepted), len(out.result.Rejected))
		c.logger.Info("file transformed",
			zap.String("file", out.name),
			zap.String("source", source),
			zap.Int("received", out.result.Received),
			zap.Int("accepted", len(out.result.Accepted)),
			zap.Int("rejected", len(out.result.Rejected)),
		)
		c.sendProgress(progress, ProgressEvent{
			Type:    EventFileDone,
			Message: fmt.Sprintf("%s recognised as %s: %d accepted, %d rejected", out.name, source, len(out.result.Accepted), len(out.result.Rejected)),
			Data: map[string]any{
				"file":     out.name,
				"source":   source,
				"received": out.result.Received,
				"accepted": len(out.result.Accepted),
				"rejected": len(out.result.Rejected),
			},
			Timestamp: time.Now(),
		})
	case out.rejected != nil:
		telemetry.RecordFile(source, "empty", 0, 1)
		c.logger.Warn("file rejected", zap.String("file", out.name), zap.String("source", source), zap.String("reason", out.rejected.Reason))
	default:
		telemetry.RecordFile(source, "skipped", 0, 0)
		c.logger.Warn("file skipped", zap.String("file", out.name), zap.Strings("errors", out.errors))
	}

	for _, msg := range out.errors {
		c.sendProgress(progress, ProgressEvent{Type: EventWarning, Message: msg, Timestamp: time.Now()})
	}
}

// collect 将文件结果归并为按来源的报告，并返回参与合并的转换结果（保持输入顺序）
func (c *Coordinator) collect(report *model.IngestionReport, outcomes []fileOutcome) []*parser.TransformResult {
	bySource := make(map[model.SourceType]*model.SourceReport)
	sourceReport := func(s model.SourceType) *model.SourceReport {
		sr, ok := bySource[s]
		if !ok {
			sr = &model.SourceReport{
				Source:          s,
				Files:           []string{},
				Rejected:        []model.RejectedRow{},
				ColumnsDetected: []string{},
				ColumnsMapped:   map[string]string{},
			}
			bySource[s] = sr
		}
		return sr
	}

	var results []*parser.TransformResult
	for _, out := range outcomes {
		report.Errors = append(report.Errors, out.errors...)

		switch {
		case out.result != nil:
			res := out.result
			sr := sourceReport(out.source)
			sr.Files = append(sr.Files, out.name)
			sr.Received += res.Received
			sr.Accepted += len(res.Accepted)
			sr.Rejected = append(sr.Rejected, res.Rejected...)
			sr.ColumnsDetected = appendUnique(sr.ColumnsDetected, res.ColumnsDetected...)
			for field, col := range res.ColumnsMapped {
				sr.ColumnsMapped[field] = col
			}

			report.Totals.FilesProcessed++
			report.Totals.Received += res.Received
			report.Totals.Accepted += len(res.Accepted)
			report.Totals.Rejected += len(res.Rejected)
			results = append(results, res)
		case out.rejected != nil:
			sr := sourceReport(out.source)
			sr.Files = append(sr.Files, out.name)
			sr.Rejected = append(sr.Rejected, *out.rejected)
			report.Totals.Rejected++
		}
	}

	for _, s := range model.AllSources {
		if sr, ok := bySource[s]; ok {
			report.Sources = append(report.Sources, *sr)
		}
	}
	return results
}

func (c *Coordinator) applyPersistResult(report *model.IngestionReport, res *persister.Result) {
	report.Totals.Created = res.Created
	report.Totals.Updated = res.Updated
	report.Totals.SkippedDuplicate = res.SkippedDuplicate
	report.TeamCount = res.Teams
	report.Errors = append(report.Errors, res.Errors...)

	for i := range report.Sources {
		t := res.Outcomes[report.Sources[i].Source]
		report.Sources[i].Updated = t.Updated
		report.Sources[i].SkippedDuplicate = t.SkippedDuplicate
	}

	telemetry.RecordPersist(res.Created, res.Updated, res.SkippedDuplicate, len(res.Errors))
}

// sendProgress 发送进度事件（通道满时丢弃）
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- event:
	default:
	}
}

// sendFinal 终态事件阻塞发送，直到读取方取走或 ctx 结束
func (c *Coordinator) sendFinal(ctx context.Context, ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}

func fileNames(files []FileInput) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func joinFields(fields []model.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}
