// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model-viewer-go/internal/config"
	"model-viewer-go/internal/handler"
	"model-viewer-go/internal/middleware"
	"model-viewer-go/internal/model"
	"model-viewer-go/internal/pipeline"
	"model-viewer-go/internal/repository"
	"model-viewer-go/internal/service"
	"model-viewer-go/pkg/database"
	"model-viewer-go/pkg/es"
	"model-viewer-go/pkg/kafka"
	"model-viewer-go/pkg/lock"
	"model-viewer-go/pkg/log"
	"model-viewer-go/pkg/storage"
	"model-viewer-go/pkg/thumbnail"
	"model-viewer-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("VIEWER_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化数据库和 Redis
	database.InitDB(cfg.Database)
	if err := database.DB.AutoMigrate(&model.Asset{}, &model.ViewerProfile{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	var locker lock.Locker = lock.NoopLocker{}
	if database.RDB != nil {
		locker = lock.NewRedisLocker(database.RDB, 10*time.Second, 5*time.Second)
	}

	// 4. 初始化文件存储
	store, err := newContentStore(ctx, cfg)
	if err != nil {
		log.Fatal("文件存储初始化失败", err)
	}

	// 5. 初始化搜索索引，失败时回退到数据库查询
	var indexer es.Indexer = es.NoopIndexer{}
	if cfg.Elasticsearch.Enabled {
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Errorf("es 初始化失败，搜索将回退到数据库: %v", err)
		} else {
			indexer = client
		}
	}

	// 6. 初始化 Repository
	assetRepo := repository.NewAssetRepository(database.DB)
	profileRepo := repository.NewProfileRepository(database.DB)

	// 7. 初始化事件处理管道：启用 Kafka 时异步处理，否则在请求中同步处理
	processor := pipeline.NewProcessor(assetRepo, indexer)
	var publisher service.EventPublisher = pipeline.NewInlinePublisher(processor)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
		go kafka.StartConsumer(ctx, cfg.Kafka, processor, database.RDB)
	}

	// 8. 初始化 Service (依赖注入)
	ingestionService := service.NewIngestionService(assetRepo, store, thumbnail.NewProvider(cfg.Thumbnail), publisher, cfg.Upload, cfg.Thumbnail)
	catalogService := service.NewCatalogService(assetRepo, store, publisher,
		service.WithPresignedDownloads(time.Duration(cfg.MinIO.PresignExpiryMinutes)*time.Minute))
	searchService := service.NewSearchService(indexer, assetRepo, catalogService)
	profileService := service.NewProfileService(profileRepo, assetRepo, locker)
	templateService := service.NewTemplateService(profileRepo, assetRepo)
	sessions := token.NewSessionManager(cfg.Session.Secret, cfg.Session.ExpireHours)

	// 9. 导入种子模型，已导入的文件会被跳过
	go initSeedFiles(ctx, cfg.Upload.SeedDir, assetRepo, ingestionService)

	// 10. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.RequestLogger(),
		gin.Recovery(),
		middleware.CORS(cfg.CORS, cfg.Session.Header),
		middleware.SessionResolver(sessions, cfg.Session),
	)

	handler.RegisterRoutes(r.Group("/api/v1"),
		handler.NewAssetHandler(ingestionService, catalogService, searchService, cfg.Upload.MaxFileSize),
		handler.NewProfileHandler(profileService),
		handler.NewTemplateHandler(templateService),
	)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	// 取消 ctx 以停止 Kafka 消费者和种子导入
	cancel()
	log.Info("服务已优雅关闭")
}

// newContentStore 根据配置选择 MinIO 或本地磁盘存储。
func newContentStore(ctx context.Context, cfg config.Config) (storage.ContentStore, error) {
	switch cfg.Storage.Driver {
	case "disk":
		log.Infof("使用本地磁盘存储, root: %s", cfg.Storage.Disk.Root)
		return storage.NewDiskStore(cfg.Storage.Disk.Root)
	case "", "minio":
		log.Infof("使用 MinIO 存储, endpoint: %s, bucket: %s", cfg.MinIO.Endpoint, cfg.MinIO.BucketName)
		return storage.NewMinIOStore(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
