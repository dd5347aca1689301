// admin.go - privacy-conscious admin area and visitor tracking
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zakariast578/portfolio/internal/config"
	"github.com/Zakariast578/portfolio/internal/store"
)

const adminCookie = "admin_token"

type admin struct {
	token     string
	salt      string
	username  string
	password  string
	retention time.Duration
	store     *store.Store
	log       *zap.Logger

	// tracking counts visit writes still in flight.
	tracking sync.WaitGroup
}

func newAdmin(cfg config.Config, st *store.Store, logger *zap.Logger) (*admin, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	salt, err := generateToken()
	if err != nil {
		return nil, err
	}

	a := &admin{
		token:     token,
		salt:      salt,
		username:  cfg.Admin.Username,
		password:  cfg.Admin.Password,
		retention: cfg.Retention,
		store:     st,
		log:       logger.Named("admin"),
	}

	if a.password == "" {
		if gin.Mode() == gin.DebugMode {
			a.password = "admin123"
			a.log.Warn("using default admin password, set ADMIN_PASSWORD")
		} else {
			a.log.Warn("ADMIN_PASSWORD is not set, admin login is disabled")
		}
	}
	a.log.Info("admin access available", zap.String("path", "/admin/login"))
	if gin.Mode() == gin.DebugMode {
		a.log.Debug("admin token (dev only)", zap.String("token", a.token))
	}
	return a, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// hashIP returns a salted, truncated hash so raw addresses are never stored.
// The hash is stable for the lifetime of the process.
func (a *admin) hashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(ip + a.salt))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *admin) checkCredentials(username, password string) bool {
	if a.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *admin) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// trackingMiddleware records page views with hashed addresses. Static assets,
// admin pages, streams and requests carrying DNT are skipped.
func (a *admin) trackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet ||
			strings.HasPrefix(path, "/static/") ||
			strings.HasPrefix(path, "/admin/") ||
			strings.HasPrefix(path, "/counters/") ||
			strings.HasPrefix(path, "/favicon") ||
			strings.HasPrefix(path, "/privacy") ||
			path == "/healthz" {
			c.Next()
			return
		}

		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		visit := store.Visit{
			HashedIP:  a.hashIP(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
			Timestamp: time.Now(),
		}
		a.tracking.Add(1)
		go func() {
			defer a.tracking.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.store.RecordVisit(ctx, visit); err != nil {
				a.log.Warn("recording visitor", zap.Error(err))
			}
		}()
		c.Next()
	}
}

// cleanup removes visitor records older than the retention window.
func (a *admin) cleanup(ctx context.Context) (int64, error) {
	n, err := a.store.PurgeVisitorsBefore(ctx, time.Now().Add(-a.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info("privacy cleanup removed old visitor records",
			zap.Int64("rows", n),
			zap.Duration("retention", a.retention))
	}
	return n, nil
}

// sweep runs cleanup now and then every interval until ctx is done.
func (a *admin) sweep(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := a.cleanup(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("privacy cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (a *admin) routes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":     "Privacy Policy",
			"retention": humanDays(a.retention),
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		visitor := a.hashIP(c.ClientIP())
		if !a.checkCredentials(c.PostForm("username"), c.PostForm("password")) {
			a.log.Warn("failed admin login", zap.String("visitor", visitor))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.SetCookie(adminCookie, a.token, 3600*24, "/admin", "", gin.Mode() == gin.ReleaseMode, true)
		a.log.Info("admin login", zap.String("visitor", visitor))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", gin.Mode() == gin.ReleaseMode, true)
		a.log.Info("admin logout", zap.String("visitor", a.hashIP(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	group := r.Group("/admin")
	group.Use(a.authMiddleware())

	group.GET("/dashboard", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			a.log.Error("loading admin stats", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats": stats,
		})
	})

	group.GET("/api/stats", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			a.log.Error("loading admin stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	group.GET("/visitors", func(c *gin.Context) {
		visitors, err := a.store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			a.log.Error("loading visitors", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	group.GET("/submissions", func(c *gin.Context) {
		subs, err := a.store.RecentSubmissions(c.Request.Context(), 200)
		if err != nil {
			a.log.Error("loading submissions", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load submissions",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-submissions.html", gin.H{
			"submissions": subs,
		})
	})

	group.DELETE("/submissions/:id", func(c *gin.Context) {
		id := c.Param("id")
		err := a.store.DeleteSubmission(c.Request.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		case err != nil:
			a.log.Error("deleting submission", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete submission"})
			return
		}
		a.log.Info("submission deleted", zap.String("id", id), zap.String("visitor", a.hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, gin.H{"message": "submission deleted"})
	})

	group.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := a.cleanup(c.Request.Context())
		if err != nil {
			a.log.Error("privacy cleanup", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "privacy cleanup complete", "removed": n})
	})

	group.GET("/export/stats", func(c *gin.Context) {
		stats, err := a.store.Stats(c.Request.Context(), time.Now())
		if err != nil {
			a.log.Error("exporting stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		a.log.Info("stats exported", zap.String("visitor", a.hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})
}

func humanDays(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
