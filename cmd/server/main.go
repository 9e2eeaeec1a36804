// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lcrs-go/internal/config"
	"lcrs-go/internal/handler"
	"lcrs-go/internal/middleware"
	"lcrs-go/internal/model"
	"lcrs-go/internal/pipeline"
	"lcrs-go/internal/repository"
	"lcrs-go/internal/service"
	"lcrs-go/pkg/database"
	"lcrs-go/pkg/embedding"
	"lcrs-go/pkg/es"
	"lcrs-go/pkg/kafka"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/provider"
	"lcrs-go/pkg/storage"
	"lcrs-go/pkg/tika"
	"lcrs-go/pkg/token"
)

const seedAdminEmail = "admin@lcrs.local"

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO、Elasticsearch 与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(
		&model.Tenant{},
		&model.Member{},
		&model.Manifest{},
		&model.ManifestChunk{},
		&model.ManifestClaim{},
		&model.UsageRecord{},
	); err != nil {
		log.Fatalf("数据库表结构迁移失败: %v", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	manifestRepo := repository.NewManifestRepository(database.DB)
	claimRepo := repository.NewClaimRepository(database.DB)
	usageRepo := repository.NewUsageRepository(database.DB)
	tenantRepo := repository.NewTenantRepository(database.DB)
	memberRepo := repository.NewMemberRepository(database.DB)
	cacheRepo := repository.NewSimulationCacheRepository(database.RDB, time.Duration(cfg.Cache.TTLHours)*time.Hour)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	retryPolicy := provider.NewRetryPolicy(cfg.Retry)
	providers := provider.FromConfigs(cfg.Providers)
	verifier := verifierProvider(providers, cfg.Verification.Provider)

	memberService := service.NewMemberService(memberRepo, jwtManager)
	claimService := service.NewClaimService(verifier, retryPolicy, cfg.Verification)
	ingestService := service.NewIngestService(manifestRepo, cfg.MinIO, cfg.Ingest)
	manifestService := service.NewManifestService(manifestRepo, claimRepo, cfg.Elasticsearch)
	searchService := service.NewSearchService(embeddingClient, es.ESClient, manifestRepo, cfg.Elasticsearch)
	usageService := service.NewUsageService(usageRepo, tenantRepo)
	simulationService := service.NewSimulationService(
		providers,
		embeddingClient,
		claimService,
		manifestRepo,
		claimRepo,
		usageRepo,
		tenantRepo,
		cacheRepo,
		retryPolicy,
		cfg.Scoring,
	)

	// 6. 初始化文档处理管道 (Processor)
	processor := pipeline.NewProcessor(
		tikaClient,
		embeddingClient,
		claimService,
		manifestRepo,
		claimRepo,
		retryPolicy,
		cfg.Elasticsearch,
		cfg.MinIO,
		cfg.Scoring,
		cfg.Verification,
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7.1 初始化种子数据：默认租户与管理员，以及 initdocs 目录下的示例文档
	admin := initSeedTenant(tenantRepo, memberRepo)
	if admin != nil {
		initCtx, cancelInit := context.WithCancel(context.Background())
		defer cancelInit()
		go initSeedDocuments(initCtx, "initdocs", admin, manifestRepo, ingestService)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	memberHandler := handler.NewMemberHandler(memberService)
	manifestHandler := handler.NewManifestHandler(ingestService, manifestService, cfg.Ingest)
	simulationHandler := handler.NewSimulationHandler(simulationService, memberService, jwtManager)
	searchHandler := handler.NewSearchHandler(searchService)
	usageHandler := handler.NewUsageHandler(usageService)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组 (公开访问)
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", memberHandler.Login)
		}

		// Member 路由组
		members := apiV1.Group("/members")
		members.Use(middleware.AuthMiddleware(jwtManager, memberService))
		{
			members.GET("/me", memberHandler.GetProfile)
			// 成员管理仅限管理员
			members.POST("", middleware.AdminAuthMiddleware(), memberHandler.CreateMember)
			members.GET("", middleware.AdminAuthMiddleware(), memberHandler.ListMembers)
		}

		// Manifest 路由组，需要认证
		manifests := apiV1.Group("/manifests")
		manifests.Use(middleware.AuthMiddleware(jwtManager, memberService))
		{
			manifests.POST("", manifestHandler.Upload)
			manifests.GET("", manifestHandler.List)
			manifests.GET("/:versionId", manifestHandler.GetDetail)
			manifests.DELETE("/:versionId", middleware.AdminAuthMiddleware(), manifestHandler.Delete)
		}

		// Simulation 路由组，需要认证
		simulations := apiV1.Group("/simulations")
		simulations.Use(middleware.AuthMiddleware(jwtManager, memberService))
		{
			simulations.POST("", simulationHandler.Run)
		}

		// Search 路由组
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, memberService))
		{
			search.GET("/passages", searchHandler.SearchPassages)
		}

		// Usage 路由组
		usage := apiV1.Group("/usage")
		usage.Use(middleware.AuthMiddleware(jwtManager, memberService))
		{
			usage.GET("", usageHandler.Report)
		}
	}
	// 仿真流式路由 (WebSocket)，token 放在路径参数里
	r.GET("/simulations/stream/:token", simulationHandler.Stream)

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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在程序退出时自然结束。
	// 如果需要更精细的控制，可以在 StartConsumer 中实现一个关闭通道。
	log.Info("服务已优雅关闭")
}

// verifierProvider 按名字挑选声明校验用的提供商。
// 名字匹配不到时退回第一个提供商，完全没有提供商时使用占位实现，
// 保证服务在没有真实 API key 的环境下也能启动。
func verifierProvider(providers []provider.Provider, name string) provider.Provider {
	for _, p := range providers {
		if p.Name() == name {
			return p
		}
	}
	if len(providers) > 0 {
		log.Warnf("未找到名为 '%s' 的校验提供商, 改用 '%s'", name, providers[0].Name())
		return providers[0]
	}
	log.Warnf("没有配置任何提供商, 声明校验使用占位提供商")
	return provider.NewNull("verifier")
}

// initSeedTenant 保证系统里至少有一个租户和一个管理员账号（幂等）。
func initSeedTenant(tenantRepo repository.TenantRepository, memberRepo repository.MemberRepository) *model.Member {
	admin, err := memberRepo.FindByEmail(seedAdminEmail)
	if err == nil {
		return admin
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("initSeedTenant: 查询初始管理员失败: %v", err)
		return nil
	}

	tenant := &model.Tenant{Name: "默认租户", Plan: "pro"}
	if err := tenantRepo.Create(tenant); err != nil {
		log.Errorf("initSeedTenant: 创建默认租户失败: %v", err)
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		log.Errorf("initSeedTenant: 生成初始密码哈希失败: %v", err)
		return nil
	}
	admin = &model.Member{
		TenantID:     tenant.ID,
		Email:        seedAdminEmail,
		PasswordHash: string(hashed),
		Role:         model.RoleAdmin,
	}
	if err := memberRepo.Create(admin); err != nil {
		log.Errorf("initSeedTenant: 创建初始管理员失败: %v", err)
		return nil
	}
	log.Warnf("已创建初始管理员 %s (默认密码 admin123)，请尽快修改密码", seedAdminEmail)
	return admin
}

// initSeedDocuments 扫描目录下文件并通过标准接入流程导入（幂等，按标题去重）。
func initSeedDocuments(ctx context.Context, dir string, admin *model.Member, manifestRepo repository.ManifestRepository, ingestSvc service.IngestService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedDocuments: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	existing, err := manifestRepo.ListByTenant(admin.TenantID)
	if err != nil {
		log.Warnf("initSeedDocuments: 查询既有版本失败，跳过初始化导入: %v", err)
		return
	}
	seenTitles := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seenTitles[m.Title] = struct{}{}
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		fileName := info.Name()
		if _, ok := seenTitles[fileName]; ok {
			log.Infof("initSeedDocuments: 已存在，跳过: %s", fileName)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("initSeedDocuments: 打开文件失败: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		contentType := mime.TypeByExtension(filepath.Ext(fileName))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		manifest, err := ingestSvc.Upload(ctx, admin.TenantID, fileName, fileName, contentType, info.Size(), f)
		if err != nil {
			log.Warnf("initSeedDocuments: 导入失败: %s, err=%v", path, err)
			return nil
		}
		log.Infof("initSeedDocuments: 导入完成并已触发处理: %s, version=%s", fileName, manifest.VersionID)
		return nil
	})
	if walkErr != nil {
		log.Warnf("initSeedDocuments: 遍历目录发生错误: %v", walkErr)
	}
}
