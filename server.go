package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zakariast578/portfolio/internal/config"
	"github.com/Zakariast578/portfolio/internal/contact"
	"github.com/Zakariast578/portfolio/internal/content"
	"github.com/Zakariast578/portfolio/internal/counter"
	"github.com/Zakariast578/portfolio/internal/store"
	"github.com/Zakariast578/portfolio/web"
)

const invalidFormMessage = "Please fill in every field with a valid email address."

type server struct {
	cfg       config.Config
	log       *zap.Logger
	site      *content.Site
	store     *store.Store
	submitter *contact.Submitter
	admin     *admin
	limiter   *clientLimiter
}

// contactView is the data behind the contact-form fragment.
type contactView struct {
	Fields  contact.Fields
	Notice  *contact.Notification
	Invalid string
}

func newServer(cfg config.Config, logger *zap.Logger, st *store.Store, sender contact.Sender) (*server, error) {
	site, err := content.Load()
	if err != nil {
		return nil, err
	}
	adm, err := newAdmin(cfg, st, logger)
	if err != nil {
		return nil, err
	}

	journal := &journaledSender{next: sender, store: st, log: logger.Named("journal")}
	return &server{
		cfg:       cfg,
		log:       logger,
		site:      site,
		store:     st,
		submitter: contact.NewSubmitter(journal, logger.Named("contact")),
		admin:     adm,
		limiter:   newClientLimiter(cfg.Contact.RatePerMinute, cfg.Contact.RateBurst),
	}, nil
}

func (s *server) routes() (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(requestLogger(s.log.Named("http")), gin.Recovery())
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", web.Static())
	r.Use(s.admin.trackingMiddleware())

	// Home page route
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Site":    s.site,
			"Contact": contactView{},
		})
	})

	// HTMX contact form fragment
	r.GET("/contact-form", func(c *gin.Context) {
		c.HTML(http.StatusOK, "contact-form.html", contactView{})
	})

	r.POST("/contact", s.limitContact(), s.submitContact)
	r.GET("/counters/:key/stream", s.streamCounter)

	r.GET("/healthz", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.log.Error("health check", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.admin.routes(r)
	return r, nil
}

// submitContact runs one submission and answers with the re-rendered form.
// HTMX only swaps 2xx responses, so failures are rendered with 200 like
// successes and the notification tells them apart.
func (s *server) submitContact(c *gin.Context) {
	var fields contact.Fields
	bindErr := c.ShouldBind(&fields)

	form := contact.NewForm()
	form.Fill(fields)

	if bindErr != nil {
		s.log.Debug("rejecting incomplete contact form", zap.Error(bindErr))
		c.HTML(http.StatusOK, "contact-form.html", contactView{
			Fields:  form.Fields(),
			Invalid: invalidFormMessage,
		})
		return
	}

	ctx := withVisitor(c.Request.Context(), s.admin.hashIP(c.ClientIP()))
	stop := context.AfterFunc(ctx, form.Unmount)
	defer stop()

	var notice *contact.Notification
	err := s.submitter.Submit(ctx, form, contact.NotifierFunc(func(n contact.Notification) {
		notice = &n
	}))
	if errors.Is(err, contact.ErrUnmounted) {
		s.log.Info("client left before contact submission resolved")
		c.Abort()
		return
	}

	c.HTML(http.StatusOK, "contact-form.html", contactView{
		Fields: form.Fields(),
		Notice: notice,
	})
}

// streamCounter animates one counter over server-sent events. The request
// itself is the visibility event; closing the connection unmounts the counter.
func (s *server) streamCounter(c *gin.Context) {
	def, ok := s.site.Counter(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown counter"})
		return
	}
	ratio, err := strconv.ParseFloat(c.DefaultQuery("ratio", "1"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ratio must be a number"})
		return
	}

	duration := s.cfg.Counter.Duration
	if def.Duration > 0 {
		duration = def.Duration
	}
	ctr := counter.New(def.Value, duration, counter.WithTick(s.cfg.Counter.Tick))
	defer ctr.Close()

	if !ctr.Observe(ratio) {
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	gone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-gone:
			return false
		case v := <-ctr.Updates():
			c.SSEvent("count", v)
			return true
		case <-ctr.Done():
			c.SSEvent("done", ctr.Value())
			return false
		}
	})
}

// wait blocks until background visit writes have finished.
func (s *server) wait() {
	s.admin.tracking.Wait()
}

type visitorKey struct{}

func withVisitor(ctx context.Context, hashedIP string) context.Context {
	return context.WithValue(ctx, visitorKey{}, hashedIP)
}

func visitorFrom(ctx context.Context) string {
	v, _ := ctx.Value(visitorKey{}).(string)
	return v
}

// journaledSender records the outcome of every relay call.
type journaledSender struct {
	next  contact.Sender
	store *store.Store
	log   *zap.Logger
}

func (j *journaledSender) Send(ctx context.Context, p contact.Payload) error {
	err := j.next.Send(ctx, p)

	sub := store.Submission{
		HashedIP: visitorFrom(ctx),
		Subject:  p.Subject,
		Status:   store.StatusSent,
	}
	if err != nil {
		sub.Status = store.StatusFailed
		sub.Error = err.Error()
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, rerr := j.store.RecordSubmission(rctx, sub); rerr != nil {
		j.log.Warn("recording submission", zap.Error(rerr))
	}
	return err
}
