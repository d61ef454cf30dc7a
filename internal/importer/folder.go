package importer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"cmpulse/internal/model"
	"cmpulse/internal/parser"
)

// CollectFolder 递归收集目录下受支持的表格文件（按路径排序，忽略 Office 临时文件）
func CollectFolder(dir string) ([]FileInput, error) {
	var files []FileInput
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") || !parser.SupportedExt(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInput{Name: name, Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IngestFolder 导入目录下所有文件；来源按表头自动识别
func (c *Coordinator) IngestFolder(ctx context.Context, dir string) (*model.IngestionReport, error) {
	files, err := CollectFolder(dir)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, RunOptions{Trigger: TriggerFolder, Files: files})
}
