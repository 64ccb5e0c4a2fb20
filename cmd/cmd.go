package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nsxzhou1114/blog-comment/internal/config"
	"github.com/nsxzhou1114/blog-comment/internal/database"
	"github.com/nsxzhou1114/blog-comment/internal/job"
	"github.com/nsxzhou1114/blog-comment/internal/logger"
	"github.com/nsxzhou1114/blog-comment/internal/model"
	"github.com/nsxzhou1114/blog-comment/internal/render"
	"github.com/nsxzhou1114/blog-comment/internal/router"
	"github.com/nsxzhou1114/blog-comment/internal/service"
	"github.com/nsxzhou1114/blog-comment/internal/store"
	"github.com/nsxzhou1114/blog-comment/internal/validation"
	"github.com/nsxzhou1114/blog-comment/pkg/auth"
	"github.com/nsxzhou1114/blog-comment/pkg/cache"
	"github.com/nsxzhou1114/blog-comment/pkg/idgen"
)

var configPath string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "blog-comment",
	Short: "博客评论服务",
	Long:  `博客评论服务，提供评论的发表、回复、编辑、删除与服务端渲染`,
}

// serveCmd 启动服务命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	Long:  `启动评论服务的HTTP服务器`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config", "配置文件路径")
	rootCmd.AddCommand(serveCmd)
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// app 已初始化的依赖
type app struct {
	cfg       *config.Config
	cache     *cache.Manager
	store     *store.Store
	limits    *validation.Limits
	comments  *service.CommentService
	articles  *service.ArticleService
	reactions *service.ReactionService
	users     *service.UserService
	signer    *auth.Signer
}

// initializeSystem 初始化配置、日志、ID生成器与数据库，返回的 app 需要 close
func initializeSystem() (*app, error) {
	if err := config.Init(configPath); err != nil {
		return nil, fmt.Errorf("配置初始化失败: %v", err)
	}
	cfg := config.GetConfig()

	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("日志初始化失败: %v", err)
	}
	if err := idgen.Init(cfg.Snowflake.StartTime, cfg.Snowflake.MachineID); err != nil {
		return nil, fmt.Errorf("ID生成器初始化失败: %v", err)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := model.InitTables(db); err != nil {
		return nil, fmt.Errorf("初始化数据库表失败: %v", err)
	}

	rdb, err := database.OpenRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	manager := cache.GetManager()
	if err := manager.Initialize(rdb, cache.Options{
		CountTTL: cfg.Comment.CountCacheTTL,
		Cooldown: cfg.Comment.Cooldown,
		Logger:   logger.GetSugaredLogger(),
	}); err != nil {
		return nil, fmt.Errorf("缓存初始化失败: %v", err)
	}

	log := logger.GetSugaredLogger()
	s := store.New(db)
	limits := validation.NewLimits(cfg.Comment.Limits)

	var sensitive *service.SensitiveService
	if cfg.Comment.SensitiveWords != "" {
		sensitive = service.NewSensitiveService(log)
		if err := sensitive.LoadFile(cfg.Comment.SensitiveWords); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:    cfg,
		cache:  manager,
		store:  s,
		limits: limits,
		comments: service.NewCommentService(service.CommentDeps{
			Store:       s,
			IDs:         idgen.Default(),
			Limits:      limits,
			Counters:    manager.Counters(),
			Cooldown:    manager.Cooldown(),
			Articles:    manager.Articles(),
			Sensitive:   sensitive,
			EditRetries: cfg.Comment.EditRetries,
			Logger:      log,
		}),
		articles:  service.NewArticleService(s, idgen.Default(), manager.Articles(), log),
		reactions: service.NewReactionService(s, idgen.Default()),
		users:     service.NewUserService(s, idgen.Default(), log),
		signer: auth.NewSigner(cfg.JWT.SecretKey, cfg.JWT.Issuer,
			time.Duration(cfg.JWT.AccessExpireSeconds)*time.Second),
	}
	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		logger.Warnf("关闭缓存失败: %v", err)
	}
	if err := database.Close(); err != nil {
		logger.Warnf("关闭数据库失败: %v", err)
	}
	_ = logger.Sync()
}

// mustInit 供一次性命令使用，失败时直接退出
func mustInit() *app {
	a, err := initializeSystem()
	if err != nil {
		fmt.Printf("系统初始化失败: %v\n", err)
		os.Exit(1)
	}
	return a
}

// startServer 启动HTTP服务
func startServer() error {
	a, err := initializeSystem()
	if err != nil {
		return fmt.Errorf("系统初始化失败: %w", err)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := a.articles.WarmUp(ctx, a.cache)
	if err != nil {
		return err
	}
	logger.Info("文章过滤器已预热", zap.Int("articles", n))

	if err := validation.RegisterGin(); err != nil {
		return err
	}
	md, err := render.NewMarkdown(a.cfg.Markdown.Engine)
	if err != nil {
		return err
	}

	// 长度上限支持热更新
	config.OnChange(func(c *config.Config) {
		a.limits.Update(c.Comment.Limits)
		logger.Info("评论长度上限已更新", zap.Any("limits", c.Comment.Limits))
	})
	config.Watch()

	scheduler, err := job.NewScheduler(a.cfg.Cron.RecountSpec, a.cfg.Cron.Timezone, a.comments,
		job.WarmerFunc(func(ctx context.Context) (int, error) {
			return a.articles.WarmUp(ctx, a.cache)
		}), logger.GetSugaredLogger())
	if err != nil {
		return err
	}
	scheduler.Start()

	gin.SetMode(a.cfg.App.Mode)
	engine := router.New(router.Deps{
		Comments:       a.comments,
		Articles:       a.articles,
		Reactions:      a.reactions,
		Users:          a.users,
		Renderer:       render.NewRenderer(md, a.limits),
		Signer:         a.signer,
		Logger:         logger.GetSugaredLogger(),
		TokenBuffer:    time.Duration(a.cfg.JWT.BufferSeconds) * time.Second,
		RequestTimeout: a.cfg.App.RequestTimeout,
		Cors:           a.cfg.App.Cors,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("服务已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP服务启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务关闭异常: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		return err
	}
	logger.Info("服务已关闭")
	return nil
}
