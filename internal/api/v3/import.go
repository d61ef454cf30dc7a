package v3

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cmpulse/internal/importer"
	"cmpulse/internal/model"
	"cmpulse/internal/persister"
)

// genericFileField 未指定来源的上传字段，来源按表头识别
const genericFileField = "file"

// uploadFields 表单字段 -> 来源
var uploadFields = []struct {
	Field  string
	Source model.SourceType
}{
	{"cc", model.SourceCC},
	{"fixed", model.SourceFixed},
	{"up", model.SourceUP},
	{"re", model.SourceRE},
	{"all_leads", model.SourceAllLeads},
	{"teams", model.SourceTeams},
	{genericFileField, model.SourceNone},
}

// uploadBatch 已打开的上传文件
type uploadBatch struct {
	files   []importer.FileInput
	closers []multipart.File
}

func (b *uploadBatch) Close() {
	for _, f := range b.closers {
		_ = f.Close()
	}
}

// openUploads 解析 multipart 表单；mapping 字段为按来源的列映射覆盖，如 {"CC":{"ccPct":"课消"}}
func openUploads(c *gin.Context) (*uploadBatch, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.New("invalid multipart form")
	}

	overrides := map[model.SourceType]model.ColumnMapping{}
	if raw := c.PostForm("mapping"); raw != "" {
		var byName map[string]model.ColumnMapping
		if err := json.Unmarshal([]byte(raw), &byName); err != nil {
			return nil, errors.New("invalid mapping")
		}
		for name, m := range byName {
			src, ok := model.ParseSourceType(name)
			if !ok {
				return nil, fmt.Errorf("unknown source in mapping: %s", name)
			}
			overrides[src] = m
		}
	}

	batch := &uploadBatch{}
	for _, uf := range uploadFields {
		for _, fh := range form.File[uf.Field] {
			f, err := fh.Open()
			if err != nil {
				batch.Close()
				return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
			}
			batch.closers = append(batch.closers, f)
			batch.files = append(batch.files, importer.FileInput{
				Name:      fh.Filename,
				Reader:    f,
				Size:      fh.Size,
				Source:    uf.Source,
				Overrides: overrides[uf.Source],
			})
		}
	}
	if len(batch.files) == 0 {
		return nil, errors.New("no files uploaded")
	}
	return batch, nil
}

// Import 导入上传的表格并返回导入报告
// POST /api/import
func (h *Handler) Import(c *gin.Context) {
	batch, err := openUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer batch.Close()

	report, err := h.coordinator.Run(c.Request.Context(), importer.RunOptions{
		Trigger: importer.TriggerUpload,
		Files:   batch.files,
	})
	if err != nil {
		if errors.Is(err, persister.ErrNoScoringConfig) {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ImportStream 导入并以 SSE 推送进度，最后一个事件携带导入报告
// POST /api/import/stream
func (h *Handler) ImportStream(c *gin.Context) {
	batch, err := openUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer batch.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	progressChan := h.coordinator.Import(c.Request.Context(), importer.RunOptions{
		Trigger: importer.TriggerUpload,
		Files:   batch.files,
	})
	for event := range progressChan {
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

type importsResponse struct {
	Items []model.ImportRun `json:"items"`
}

// ListImports 最近的导入记录
// GET /api/imports?limit=
func (h *Handler) ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.store.ListImportRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []model.ImportRun{}
	}
	c.JSON(http.StatusOK, importsResponse{Items: items})
}
