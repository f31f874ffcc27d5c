package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"GENBA-backend/internal/attendance"
	"GENBA-backend/internal/contestation"
	"GENBA-backend/internal/payroll"
	"GENBA-backend/internal/platform/auth"
	"GENBA-backend/internal/platform/db"
	"GENBA-backend/internal/platform/keylock"
	"GENBA-backend/internal/registry"
)

func main() {
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	secret, err := auth.JWTSecret()
	if err != nil {
		panic(err)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	nightWindow, err := payroll.ParseNightWindow(cfg.Payroll.NightStart, cfg.Payroll.NightEnd)
	if err != nil {
		panic(err)
	}
	payrollCfg := payroll.AggregateConfig{
		OvertimeMultiplier: cfg.Payroll.OvertimeMultiplier,
		Night:              nightWindow,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	authSvc := auth.NewService(conn, secret)
	regSvc := registry.NewService(conn)

	// 従業員単位の直列化スコープは全サービスで共有する
	locks := keylock.New()
	attSvc := attendance.NewService(conn, regSvc.Registry(), locks)
	conSvc := contestation.NewService(conn, locks)
	paySvc := payroll.NewService(conn, payrollCfg)

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterPublicRoutes(api, authSvc)

	authed := api.Group("")
	authed.Use(auth.RequireAuth(secret))

	admin := authed.Group("")
	admin.Use(auth.RequireRole(auth.RoleAdmin))
	auth.RegisterAdminRoutes(admin, authSvc)
	registry.RegisterRoutes(admin, regSvc)

	attendance.RegisterRoutes(authed, attSvc)
	contestation.RegisterRoutes(authed, conSvc)
	payroll.RegisterRoutes(authed, paySvc)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		var err error
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			certFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Key)
			log.Printf("[INFO] listening on https://0.0.0.0%s", cfg.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[INFO] listening on http://0.0.0.0%s", cfg.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
