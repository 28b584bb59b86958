package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"model-viewer-go/internal/repository"
	"model-viewer-go/internal/service"
	"model-viewer-go/pkg/log"
)

// initSeedFiles 扫描目录下的 .glb/.gltf 文件并通过标准入库流程导入（幂等）。
// 以原始文件名判断是否已导入。
func initSeedFiles(ctx context.Context, dir string, assets repository.AssetRepository, ingestion service.IngestionService) int {
	if dir == "" {
		return 0
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return 0
	}

	imported := 0
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		fileName := info.Name()
		if _, ok := service.FormatFromFileName(fileName); !ok {
			return nil
		}

		// 幂等检查：已导入则跳过
		exists, err := assets.ExistsByOriginalName(ctx, fileName)
		if err != nil {
			log.Warnf("initSeedFiles: 查询失败: %s, err=%v", fileName, err)
			return nil
		}
		if exists {
			log.Infof("initSeedFiles: 已存在，跳过: %s", fileName)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("initSeedFiles: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		isPublic := true
		asset, err := ingestion.Ingest(ctx, service.IngestRequest{
			Reader:   f,
			FileName: fileName,
			MimeType: seedMimeType(fileName),
			Size:     info.Size(),
			IsPublic: &isPublic,
			ClientIP: "seed",
		})
		if err != nil {
			log.Warnf("initSeedFiles: 导入失败: %s, err=%v", fileName, err)
			return nil
		}
		imported++
		log.Infof("initSeedFiles: 导入完成: %s (id=%s)", fileName, asset.ID)
		return nil
	})
	if walkErr != nil {
		log.Warnf("initSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
	return imported
}

func seedMimeType(fileName string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".gltf") {
		return "model/gltf+json"
	}
	return "model/gltf-binary"
}
