// SolarHealth 主程序
// 功能：医疗机构光伏可行性测算、机构登记、参考数据与用电/电费预测
// 架构：基于 DDD + gRPC + Kafka（Outbox）+ Redis 读模型
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	evalapp "github.com/wyfcoding/solarhealth/internal/evaluation/application"
	evalgrpc "github.com/wyfcoding/solarhealth/internal/evaluation/interfaces/grpc"
	evalhttp "github.com/wyfcoding/solarhealth/internal/evaluation/interfaces/http"
	facilityapp "github.com/wyfcoding/solarhealth/internal/facility/application"
	"github.com/wyfcoding/solarhealth/internal/facility/infrastructure/messaging"
	facilitymysql "github.com/wyfcoding/solarhealth/internal/facility/infrastructure/persistence/mysql"
	facilityredis "github.com/wyfcoding/solarhealth/internal/facility/infrastructure/persistence/redis"
	"github.com/wyfcoding/solarhealth/internal/facility/interfaces/consumer"
	facilityhttp "github.com/wyfcoding/solarhealth/internal/facility/interfaces/http"
	refapp "github.com/wyfcoding/solarhealth/internal/referencedata/application"
	refmysql "github.com/wyfcoding/solarhealth/internal/referencedata/infrastructure/persistence/mysql"
	refredis "github.com/wyfcoding/solarhealth/internal/referencedata/infrastructure/persistence/redis"
	refhttp "github.com/wyfcoding/solarhealth/internal/referencedata/interfaces/http"
	tariffapp "github.com/wyfcoding/solarhealth/internal/tariff/application"
	tariffdomain "github.com/wyfcoding/solarhealth/internal/tariff/domain"
	"github.com/wyfcoding/solarhealth/internal/tariff/infrastructure/model"
	tariffhttp "github.com/wyfcoding/solarhealth/internal/tariff/interfaces/http"
	"github.com/wyfcoding/solarhealth/pkg/cache"
	"github.com/wyfcoding/solarhealth/pkg/config"
	"github.com/wyfcoding/solarhealth/pkg/db"
	"github.com/wyfcoding/solarhealth/pkg/idgen"
	"github.com/wyfcoding/solarhealth/pkg/logger"
	"github.com/wyfcoding/solarhealth/pkg/metrics"
	"github.com/wyfcoding/solarhealth/pkg/middleware"
	"github.com/wyfcoding/solarhealth/pkg/mq"
	"github.com/wyfcoding/solarhealth/pkg/ratelimit"
	"github.com/wyfcoding/solarhealth/pkg/trace"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const (
	// 读模型在 Redis 中的保留时间
	readModelTTL = 24 * time.Hour
	// 已发送 outbox 消息的保留时间
	outboxRetention = 7 * 24 * time.Hour
)

type services struct {
	evaluation *evalapp.EvaluationService
	reference  *refapp.ReferenceDataService
	facility   *facilityapp.FacilityService
	projection *facilityapp.EvaluationProjectionService
	tariff     *tariffapp.TariffService
}

func main() {
	configPath := pflag.String("config", config.GetEnv("SOLARHEALTH_CONFIG", "configs/solarhealth/config.toml"), "path to config file")
	pflag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		Output:      cfg.Logger.Output,
		FilePath:    cfg.Logger.FilePath,
		MaxSize:     cfg.Logger.MaxSize,
		MaxBackups:  cfg.Logger.MaxBackups,
		MaxAge:      cfg.Logger.MaxAge,
		Compress:    cfg.Logger.Compress,
		WithCaller:  cfg.Logger.WithCaller,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting SolarHealth",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	shutdownTracer, err := trace.Init(ctx, trace.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.ServiceName,
		Version:      cfg.Version,
		Environment:  cfg.Environment,
		Endpoint:     cfg.Tracing.CollectorEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize tracer", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error(ctx, "Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// 4. 初始化数据库并迁移
	database, err := db.Init(ctx, db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		Tracing:            cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	models := append(refmysql.Models(), facilitymysql.Models()...)
	models = append(models, &messaging.OutboxMessage{})
	if err := database.AutoMigrate(models...); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 5. 初始化 Redis，本地 bigcache 作为一级缓存
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	irradianceTTL := time.Duration(cfg.Evaluation.IrradianceCacheTTL) * time.Second
	localCache, err := cache.NewLocal(ctx, time.Duration(cfg.Evaluation.IrradianceLocalTTL)*time.Second)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize local cache", "error", err)
	}
	defer localCache.Close()

	// 6. 初始化限流器，Redis 不可用时退化为进程内限流
	rateLimiter := ratelimit.NewFallbackRateLimiter(
		ratelimit.NewRedisRateLimiter(redisCache.Client()),
		ratelimit.NewLocalRateLimiter(10*time.Minute),
	)

	// 7. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		metricsInstance.StartHTTPServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 8. 预测模型只在启动时加载一次
	artifact, err := model.LoadConsumptionArtifact(cfg.Models.ConsumptionArtifact)
	if err != nil {
		logger.Fatal(ctx, "Failed to load consumption model", "error", err)
	}
	classifier, err := model.LoadPeakShavingModel(cfg.Models.PeakShavingArtifact)
	if err != nil {
		logger.Fatal(ctx, "Failed to load peak shaving model", "error", err)
	}

	nodeID, err := strconv.ParseInt(config.GetEnv("SOLARHEALTH_NODE_ID", "1"), 10, 64)
	if err != nil {
		logger.Fatal(ctx, "Invalid SOLARHEALTH_NODE_ID", "error", err)
	}
	ids, err := idgen.New(nodeID)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize id generator", "error", err)
	}

	// 9. 初始化应用服务
	svc := services{}
	svc.evaluation = evalapp.NewEvaluationService(metricsInstance, evalapp.Options{
		MaxBatchSize: cfg.Evaluation.MaxBatchSize,
		Concurrency:  cfg.Evaluation.Concurrency,
	}, logger.WithModule("evaluation"))
	svc.reference = refapp.NewReferenceDataService(
		refmysql.NewDepartmentRepository(database.DB),
		refmysql.NewCityRepository(database.DB),
		refmysql.NewIrradianceRepository(database.DB),
		refredis.NewIrradianceCache(cache.NewTiered(localCache, redisCache), irradianceTTL),
		metricsInstance,
		logger.WithModule("referencedata"),
	)
	readModel := facilityredis.NewEvaluationReadRepository(redisCache, readModelTTL)
	svc.facility = facilityapp.NewFacilityService(
		facilitymysql.NewFacilityRepository(database.DB),
		facilitymysql.NewAssessmentRepository(database.DB),
		readModel,
		messaging.NewOutboxEventPublisher(database.DB),
		database,
		svc.reference,
		svc.evaluation,
		ids,
		cfg.DefaultIrradiance(),
		metricsInstance,
		logger.WithModule("facility"),
	)
	svc.projection = facilityapp.NewEvaluationProjectionService(readModel, logger.WithModule("facility"))
	svc.tariff = tariffapp.NewTariffService(
		artifact.Model,
		tariffdomain.NewFeatureBuilder(artifact.History),
		classifier,
		metricsInstance,
		logger.WithModule("tariff"),
	)

	// 10. Kafka：Outbox 投递与读模型投影
	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	}
	producer := mq.NewProducer(kafkaCfg)
	defer producer.Close()

	if cfg.Outbox.Enabled {
		outboxStore := messaging.NewGormOutboxStore(database.DB)
		relay := messaging.NewOutboxRelay(
			outboxStore,
			producer,
			messaging.RelayConfig{
				Topic:     cfg.Outbox.Topic,
				Interval:  time.Duration(cfg.Outbox.Interval) * time.Millisecond,
				BatchSize: cfg.Outbox.BatchSize,
			},
			metricsInstance,
			logger.WithModule("outbox"),
		)
		go relay.Run(ctx)
		go cleanupOutbox(ctx, outboxStore)

		dlq := mq.NewDeadLetterQueue(producer, cfg.Outbox.Topic+".dlq")
		kafkaConsumer := mq.NewConsumer(kafkaCfg, cfg.Outbox.Topic, dlq)
		defer kafkaConsumer.Close()
		projector := consumer.NewProjectionHandler(svc.projection, logger.WithModule("facility"))
		go func() {
			if err := kafkaConsumer.Run(ctx, projector.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "Projection consumer stopped", "error", err)
			}
		}()
	}

	// 11. 创建并启动 HTTP 与 gRPC 服务器
	httpServer := createHTTPServer(cfg, svc, rateLimiter, metricsInstance)
	grpcServer := createGRPCServer(cfg, svc, rateLimiter, metricsInstance)

	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal(ctx, "Failed to listen on gRPC address", "error", err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "gRPC server error", "error", err)
		}
	}()

	// 12. 优雅关停
	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down SolarHealth")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	logger.Info(shutdownCtx, "SolarHealth stopped")
}

// cleanupOutbox 每小时删除保留期以外的已发送消息
func cleanupOutbox(ctx context.Context, store *messaging.GormOutboxStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupSent(ctx, time.Now().Add(-outboxRetention))
			if err != nil {
				logger.Error(ctx, "Outbox cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "Outbox cleaned up", "deleted", n)
			}
		}
	}
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, svc services, limiter ratelimit.RateLimiter, m *metrics.Metrics) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))
	router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))

	evalhttp.NewEvaluationHandler(svc.evaluation, cfg.DefaultIrradiance()).RegisterRoutes(router)
	refhttp.NewReferenceDataHandler(svc.reference).RegisterRoutes(router)
	facilityhttp.NewFacilityHandler(svc.facility).RegisterRoutes(router)
	tariffhttp.NewTariffHandler(svc.tariff).RegisterRoutes(router)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"endpoints": []string{
				"/api/v1/evaluations",
				"/api/v1/departments",
				"/api/v1/cities",
				"/api/v1/facilities",
				"/api/v1/registrations",
				"/api/v1/predict",
				"/health",
			},
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建 gRPC 服务器
func createGRPCServer(cfg *config.Config, svc services, limiter ratelimit.RateLimiter, m *metrics.Metrics) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
		middleware.GRPCMetricsInterceptor(m),
	}
	if cfg.RateLimit.Enabled {
		interceptors = append(interceptors, middleware.GRPCRateLimitInterceptor(limiter, ratelimit.Limit{
			Rate:   cfg.RateLimit.Rate,
			Period: time.Second,
			Burst:  cfg.RateLimit.Burst,
		}))
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: time.Duration(cfg.GRPC.IdleTimeout) * time.Second,
		}),
	)

	evalgrpc.NewHandler(svc.evaluation, cfg.DefaultIrradiance()).Register(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server
}
