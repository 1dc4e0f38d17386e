package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/likexian/whois"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/config"
	"linkreach/models"
	"linkreach/utils"
)

// backlinkPullLimit caps how many referring domains one competitor URL
// contributes.
const backlinkPullLimit = 200

// Deps are the external collaborators the orchestrator is constructed
// with; cron commands and the server worker share one wiring.
type Deps struct {
	SEO     SEOProvider
	Finder  EmailFinder
	LLM     LLMClient
	Sender  MessageSender
	Cache   *redis.Client // nil when redis is disabled
	Decrypt func(string) (string, error)
}

// Orchestrator drives the pipeline in a fixed step order. Every step is
// isolated: a panic or error in one is logged and the cycle moves on.
type Orchestrator struct {
	db  *gorm.DB
	cfg *config.Config
	log *logrus.Logger

	sm         *StateMachine
	selector   *Selector
	health     *HealthChecker
	processor  *Processor
	monitor    *Monitor
	seo        SEOProvider
	finder     EmailFinder
	llm        LLMClient
	dispatcher MessageSender
	scoring    ScoringConfig
	lock       *RunLock
}

func NewOrchestrator(db *gorm.DB, cfg *config.Config, log *logrus.Logger, deps Deps) *Orchestrator {
	sm := NewStateMachine(db, log)
	selector := NewSelector(db, log, cfg.Pipeline.SenderCooldown)
	health := NewHealthChecker(db, log)
	classifier := NewClassifier(db, deps.Cache, deps.LLM, log)
	monitor := NewMonitor(db, log, classifier, deps.Sender, health, deps.Decrypt)

	scoring := DefaultScoringConfig()
	scoring.MinAuthority = cfg.Pipeline.MinAuthorityScore

	o := &Orchestrator{
		db:         db,
		cfg:        cfg,
		log:        log,
		sm:         sm,
		selector:   selector,
		health:     health,
		monitor:    monitor,
		seo:        deps.SEO,
		finder:     deps.Finder,
		llm:        deps.LLM,
		dispatcher: deps.Sender,
		scoring:    scoring,
		lock: &RunLock{
			Path:       cfg.Pipeline.LockPath,
			StaleAfter: cfg.Pipeline.LockStaleAfter,
		},
	}
	o.processor = NewProcessor(db, log, sm, cfg.Pipeline, o.sendEmail, deps.Finder)
	return o
}

type step struct {
	name string
	fn   func(context.Context) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{"campaign_domains", o.stepCampaignDomains},
		{"legacy_outreach", o.stepLegacyOutreach},
		{"email_search_queue", o.stepSearchQueue},
		{"email_send_queue", o.stepSendQueue},
		{"failed_email_sweep", o.stepRetrySweep},
		{"reply_monitoring", o.stepReplyMonitoring},
		{"lead_forwarding", o.stepLeadForwarding},
		{"sender_accounts", o.stepSenderAccounts},
		{"sender_health", o.stepSenderHealth},
		{"cleanup", o.stepCleanup},
	}
}

// RunCycle executes the full step sequence under the advisory run lock.
// Returns ErrLocked when another run holds the lock; step failures are
// logged and never abort later steps.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if err := o.lock.Acquire(); err != nil {
		return err
	}
	defer o.lock.Release()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.RunBudget)
	defer cancel()

	started := time.Now()
	o.log.Info("pipeline cycle started")

	for _, s := range o.steps() {
		o.runStep(ctx, s)
		if ctx.Err() != nil {
			o.log.Warn("run budget exhausted, ending cycle early")
			break
		}
	}

	o.log.WithField("elapsed", time.Since(started).Round(time.Millisecond)).
		Info("pipeline cycle finished")
	return nil
}

// RunStep executes one named step on its own, for the per-step cron
// commands.
func (o *Orchestrator) RunStep(ctx context.Context, name string) error {
	for _, s := range o.steps() {
		if s.name != name {
			continue
		}
		if err := o.lock.Acquire(); err != nil {
			return err
		}
		defer o.lock.Release()

		ctx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.RunBudget)
		defer cancel()
		return s.fn(ctx)
	}
	return fmt.Errorf("unknown pipeline step %q", name)
}

// StepNames lists the runnable steps in execution order.
func (o *Orchestrator) StepNames() []string {
	var names []string
	for _, s := range o.steps() {
		names = append(names, s.name)
	}
	return names
}

func (o *Orchestrator) runStep(ctx context.Context, s step) {
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{"step": s.name, "panic": r}).Error("pipeline step panicked")
			sentry.CurrentHub().Recover(r)
		}
	}()

	started := time.Now()
	if err := s.fn(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		o.log.WithField("step", s.name).WithError(err).Error("pipeline step failed")
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("pipeline_step", s.name)
			sentry.CaptureException(err)
		})
		return
	}
	o.log.WithFields(logrus.Fields{
		"step":    s.name,
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("pipeline step completed")
}

// ---- step 1: automated campaign domain processing ----

func (o *Orchestrator) stepCampaignDomains(ctx context.Context) error {
	if err := o.pullBacklinkDomains(ctx); err != nil {
		return err
	}
	if err := o.analyzePendingDomains(ctx); err != nil {
		return err
	}
	// queue email searches for automated campaigns, then drain once
	if err := o.enqueueSearches(ctx, []string{models.AutomationTemplate, models.AutomationAI}); err != nil {
		return err
	}
	return nil
}

// pullBacklinkDomains seeds target domains for campaigns that have not
// had their competitor backlink profiles pulled yet.
func (o *Orchestrator) pullBacklinkDomains(ctx context.Context) error {
	if o.seo == nil {
		o.log.Warn("seo provider not configured, skipping backlink pull")
		return nil
	}

	var campaigns []models.Campaign
	if err := o.db.Where("status = ? AND domains_pulled_at IS NULL", models.CampaignActive).
		Find(&campaigns).Error; err != nil {
		return fmt.Errorf("fetch campaigns: %w", err)
	}

	for i := range campaigns {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		campaign := &campaigns[i]
		created := 0

		for _, target := range campaign.CompetitorURLs {
			domains, err := o.seo.BacklinkDomains(ctx, target, backlinkPullLimit)
			if err != nil {
				o.log.WithFields(logrus.Fields{
					"campaign_id": campaign.ID,
					"target":      target,
				}).WithError(err).Warn("backlink pull failed")
				continue
			}
			for _, d := range domains {
				row := models.TargetDomain{CampaignID: campaign.ID, Domain: d}
				res := o.db.Where("campaign_id = ? AND domain = ?", campaign.ID, d).
					FirstOrCreate(&row)
				if res.Error == nil && res.RowsAffected > 0 {
					created++
				}
			}
		}

		now := time.Now()
		o.db.Model(campaign).Updates(map[string]interface{}{
			"domains_pulled_at": now,
			"domains_total":     gorm.Expr("domains_total + ?", created),
		})
		o.log.WithFields(logrus.Fields{
			"campaign_id": campaign.ID,
			"created":     created,
		}).Info("competitor backlink domains pulled")
	}
	return nil
}

// analyzePendingDomains fetches metrics, scores and approves or rejects
// a batch of pending domains.
func (o *Orchestrator) analyzePendingDomains(ctx context.Context) error {
	if o.seo == nil {
		return nil
	}

	var domains []models.TargetDomain
	if err := o.db.
		Joins("JOIN campaigns ON campaigns.id = target_domains.campaign_id AND campaigns.status = ? AND campaigns.deleted_at IS NULL", models.CampaignActive).
		Where("target_domains.status = ?", string(StatusPending)).
		Order("target_domains.created_at ASC").
		Limit(o.cfg.Pipeline.MaxBatchSize).
		Find(&domains).Error; err != nil {
		return fmt.Errorf("fetch pending domains: %w", err)
	}

	for i := range domains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := &domains[i]
		if err := o.sm.Transition(d, StatusPending, StatusAnalyzing); err != nil {
			continue // claimed by another run
		}
		o.analyzeDomain(ctx, d)
	}
	return nil
}

func (o *Orchestrator) analyzeDomain(ctx context.Context, d *models.TargetDomain) {
	metrics, err := o.seo.Metrics(ctx, d.Domain)
	if err != nil {
		o.sm.Fail(d, StatusAnalyzing, StatusPending, fmt.Errorf("metrics fetch: %w", err))
		return
	}

	now := time.Now()
	result := Score(o.scoring, metrics)

	d.AuthorityScore = metrics.AuthorityScore
	d.OrganicTraffic = metrics.OrganicTraffic
	d.ReferringDomains = metrics.ReferringDomains
	d.RankingKeywords = metrics.RankingKeywords
	d.TrafficCost = metrics.TrafficCost
	d.TopRankings = metrics.TopRankings
	d.AnchorDiversity = metrics.AnchorDiversity
	d.HTTPHealth = metrics.HTTPHealth
	d.TrafficFocus = metrics.TrafficFocus
	d.MetricsFetchedAt = &now
	ApplyScore(d, result)

	if err := o.db.Model(&models.TargetDomain{}).Where("id = ?", d.ID).
		Select("authority_score", "organic_traffic", "referring_domains", "ranking_keywords",
			"traffic_cost", "top_rankings", "anchor_diversity", "http_health", "traffic_focus",
			"metrics_fetched_at", "quality_score", "quality_points", "quality_max", "score_reasons").
		Updates(d).Error; err != nil {
		o.sm.Fail(d, StatusAnalyzing, StatusPending, fmt.Errorf("store metrics: %w", err))
		return
	}

	var campaign models.Campaign
	if err := o.db.First(&campaign, d.CampaignID).Error; err == nil &&
		campaign.AutomationMode == models.AutomationAI && o.llm != nil && result.Decision == Accept {
		o.runAIAnalysis(ctx, d)
	}

	target := StatusApproved
	if result.Decision == Reject {
		target = StatusRejected
	}
	if err := o.sm.Transition(d, StatusAnalyzing, target); err != nil {
		o.log.WithField("domain_id", d.ID).WithError(err).Warn("could not finish analysis")
	}
}

var aiScorePattern = regexp.MustCompile(`(?i)score\D{0,10}(\d{1,3})`)

// runAIAnalysis asks the LLM for a suitability read, enriched with a
// whois excerpt. Advisory only: the recommendation is stored for the
// operator, the scoring decision stands.
func (o *Orchestrator) runAIAnalysis(ctx context.Context, d *models.TargetDomain) {
	whoisExcerpt := ""
	if raw, err := whois.Whois(d.Domain); err == nil {
		if len(raw) > 500 {
			raw = raw[:500]
		}
		whoisExcerpt = raw
	}

	prompt := fmt.Sprintf(
		"Evaluate %s as a backlink outreach target. Metrics: authority %.0f, organic traffic %.0f, "+
			"referring domains %.0f, ranking keywords %.0f, traffic cost %.0f.\n"+
			"Whois excerpt:\n%s\n\n"+
			"Reply with an overall suitability score (0-100) and a short recommendation.",
		d.Domain, d.AuthorityScore, d.OrganicTraffic, d.ReferringDomains,
		d.RankingKeywords, d.TrafficCost, whoisExcerpt)

	raw, err := o.llm.Analyze(ctx, prompt)
	now := time.Now()
	if err != nil {
		o.db.Model(&models.TargetDomain{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
			"ai_status":      "failed",
			"ai_analyzed_at": now,
		})
		o.log.WithField("domain_id", d.ID).WithError(err).Warn("ai analysis failed")
		return
	}

	var aiScore float64
	if m := aiScorePattern.FindStringSubmatch(raw); m != nil {
		if v, perr := strconv.ParseFloat(m[1], 64); perr == nil {
			aiScore = v
		}
	}
	o.db.Model(&models.TargetDomain{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
		"ai_status":         "completed",
		"ai_score":          aiScore,
		"ai_recommendation": raw,
		"ai_analyzed_at":    now,
	})
}

// ---- step 2: legacy outreach ----

// stepLegacyOutreach folds the deprecated manual outreach path into the
// canonical pipeline: manual-mode campaigns use the same queues, with
// the operator-written copy instead of generated copy.
func (o *Orchestrator) stepLegacyOutreach(ctx context.Context) error {
	return o.enqueueSearches(ctx, []string{models.AutomationManual})
}

// enqueueSearches moves approved domains into searching_email and queues
// the contact lookup, then drains synchronously. Domains whose previous
// lookup failed terminally keep their queue row and are not re-queued.
func (o *Orchestrator) enqueueSearches(ctx context.Context, modes []string) error {
	var domains []models.TargetDomain
	if err := o.db.
		Joins("JOIN campaigns ON campaigns.id = target_domains.campaign_id AND campaigns.status = ? AND campaigns.automation_mode IN ? AND campaigns.deleted_at IS NULL",
			models.CampaignActive, modes).
		Where("target_domains.status = ?", string(StatusApproved)).
		Where("NOT EXISTS (SELECT 1 FROM email_search_queues q WHERE q.domain_id = target_domains.id AND q.deleted_at IS NULL)").
		Order("target_domains.created_at ASC").
		Limit(o.cfg.Pipeline.MaxBatchSize).
		Find(&domains).Error; err != nil {
		return fmt.Errorf("fetch approved domains: %w", err)
	}

	queued := 0
	for i := range domains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := &domains[i]
		if err := o.sm.Transition(d, StatusApproved, StatusSearchingEmail); err != nil {
			continue
		}
		if err := o.db.Create(&models.EmailSearchQueue{DomainID: d.ID}).Error; err != nil {
			o.sm.Fail(d, StatusSearchingEmail, StatusApproved, fmt.Errorf("queue search: %w", err))
			continue
		}
		queued++
	}

	if queued > 0 {
		// immediate synchronous drain of what was just queued
		stats := o.processor.ProcessSearchQueue(ctx, queued)
		o.log.WithFields(logrus.Fields{
			"queued": queued, "processed": stats.Processed, "failed": stats.Failed,
		}).Info("email searches queued and drained")
	}
	return nil
}

// ---- step 3: scheduled email-search drain ----

func (o *Orchestrator) stepSearchQueue(ctx context.Context) error {
	stats := o.processor.ProcessSearchQueue(ctx, o.cfg.Pipeline.MaxBatchSize)
	o.logStats("email_search_queue", stats)
	return nil
}

// ---- step 4: email generation + send drain ----

func (o *Orchestrator) stepSendQueue(ctx context.Context) error {
	if err := o.generateEmails(ctx); err != nil {
		return err
	}
	stats := o.processor.ProcessEmailQueue(ctx, o.cfg.Pipeline.MaxBatchSize)
	o.logStats("email_send_queue", stats)
	return nil
}

// generateEmails writes outreach copy for domains that have a contact
// email and queues delivery. At most one non-failed email may exist per
// domain and campaign, so re-runs are idempotent.
func (o *Orchestrator) generateEmails(ctx context.Context) error {
	var domains []models.TargetDomain
	if err := o.db.Where("status = ?", string(StatusGeneratingEmail)).
		Order("created_at ASC").Limit(o.cfg.Pipeline.MaxBatchSize).
		Find(&domains).Error; err != nil {
		return fmt.Errorf("fetch generating domains: %w", err)
	}

	for i := range domains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := &domains[i]

		var campaign models.Campaign
		if err := o.db.First(&campaign, d.CampaignID).Error; err != nil {
			o.sm.Fail(d, StatusGeneratingEmail, StatusApproved, fmt.Errorf("load campaign: %w", err))
			continue
		}

		var existing models.OutreachEmail
		err := o.db.Where("domain_id = ? AND campaign_id = ? AND status <> ?",
			d.ID, campaign.ID, models.EmailFailed).First(&existing).Error
		if err == nil {
			// copy already exists, just advance
			if terr := o.sm.Transition(d, StatusGeneratingEmail, StatusSendingEmail); terr != nil {
				o.log.WithField("domain_id", d.ID).WithError(terr).Warn("could not advance domain")
			}
			continue
		}

		subject, body, genErr := o.buildCopy(ctx, &campaign, d)
		if genErr != nil {
			o.sm.Fail(d, StatusGeneratingEmail, StatusApproved, fmt.Errorf("generate copy: %w", genErr))
			continue
		}

		now := time.Now()
		email := models.OutreachEmail{
			DomainID:    d.ID,
			CampaignID:  campaign.ID,
			TemplateID:  campaign.TemplateID,
			ToEmail:     d.ContactEmail,
			Subject:     subject,
			Body:        body,
			Status:      models.EmailQueued,
			ScheduledAt: &now,
		}
		if campaign.AutomationMode == models.AutomationAI {
			email.TemplateID = nil
		}
		if err := o.db.Create(&email).Error; err != nil {
			o.sm.Fail(d, StatusGeneratingEmail, StatusApproved, fmt.Errorf("create email: %w", err))
			continue
		}
		if err := o.db.Create(&models.EmailQueue{EmailID: email.ID, DomainID: d.ID}).Error; err != nil {
			o.sm.Fail(d, StatusGeneratingEmail, StatusApproved, fmt.Errorf("queue email: %w", err))
			continue
		}
		if terr := o.sm.Transition(d, StatusGeneratingEmail, StatusSendingEmail); terr != nil {
			o.log.WithField("domain_id", d.ID).WithError(terr).Warn("could not advance domain")
		}
	}
	return nil
}

type copyData struct {
	Domain       string
	CampaignName string
	OwnerName    string
	ContactEmail string
}

// buildCopy produces subject and body: LLM-drafted for AI campaigns,
// template expansion otherwise.
func (o *Orchestrator) buildCopy(ctx context.Context, campaign *models.Campaign, d *models.TargetDomain) (string, string, error) {
	if campaign.AutomationMode == models.AutomationAI && o.llm != nil {
		return o.buildAICopy(ctx, campaign, d)
	}

	subjectTmpl := campaign.EmailSubject
	bodyTmpl := campaign.EmailBody
	if campaign.TemplateID != nil {
		var tpl models.Template
		if err := o.db.First(&tpl, *campaign.TemplateID).Error; err == nil {
			subjectTmpl, bodyTmpl = tpl.Subject, tpl.Body
		}
	}
	if subjectTmpl == "" || bodyTmpl == "" {
		// configuration missing: surface and skip, do not retry forever
		return "", "", fmt.Errorf("campaign %d has no outreach template configured", campaign.ID)
	}

	data := copyData{
		Domain:       d.Domain,
		CampaignName: campaign.Name,
		OwnerName:    campaign.OwnerName,
		ContactEmail: d.ContactEmail,
	}
	subject, err := expandTemplate("subject", subjectTmpl, data)
	if err != nil {
		return "", "", err
	}
	body, err := expandTemplate("body", bodyTmpl, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func (o *Orchestrator) buildAICopy(ctx context.Context, campaign *models.Campaign, d *models.TargetDomain) (string, string, error) {
	prompt := fmt.Sprintf(
		"Write a short, personal cold outreach email proposing a content collaboration to the owner of %s. "+
			"Campaign: %s. Analysis notes: %s\n"+
			"Reply with the subject on the first line prefixed 'Subject: ', then a blank line, then the body.",
		d.Domain, campaign.Name, d.AIRecommendation)

	raw, err := o.llm.Analyze(ctx, prompt)
	if err != nil {
		return "", "", fmt.Errorf("llm draft: %w", err)
	}

	subject, body := splitDraft(raw)
	if subject == "" || body == "" {
		return "", "", fmt.Errorf("llm draft missing subject or body")
	}
	return subject, body, nil
}

func splitDraft(raw string) (string, string) {
	lines := strings.SplitN(strings.TrimSpace(raw), "\n", 2)
	if len(lines) < 2 {
		return "", ""
	}
	subject := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[0]), "Subject:"))
	body := strings.TrimSpace(lines[1])
	return subject, body
}

func expandTemplate(name, text string, data copyData) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

// sendEmail is the SendFunc handed to the queue processor: sender
// rotation, tracking injection and provider dispatch.
func (o *Orchestrator) sendEmail(ctx context.Context, email *models.OutreachEmail) (string, error) {
	if o.dispatcher == nil {
		return "", fmt.Errorf("no sending provider configured")
	}

	var senders []models.Sender
	if err := o.db.Preload("Health").Find(&senders).Error; err != nil {
		return "", fmt.Errorf("fetch senders: %w", err)
	}

	sender, err := o.selector.Select(senders, o.cfg.Pipeline.RotationMode)
	if err != nil {
		return "", err
	}

	trackingID := uuid.New().String()
	body := utils.InjectTracking(email.Body, o.cfg.TrackingBaseURL, trackingID)

	msg := OutboundMessage{
		From:     sender.FromEmail,
		FromName: sender.FromName,
		To:       email.ToEmail,
		Subject:  email.Subject,
		Body:     body,
	}
	providerID, err := o.dispatcher.Send(ctx, sender, msg)
	if err != nil {
		return "", err
	}
	if providerID == "" {
		providerID = trackingID
	}

	o.db.Model(&models.OutreachEmail{}).Where("id = ?", email.ID).
		Updates(map[string]interface{}{
			"sender_id":   sender.ID,
			"from_email":  sender.FromEmail,
			"tracking_id": trackingID,
		})

	if err := o.selector.RecordSend(sender.ID); err != nil {
		o.log.WithField("sender_id", sender.ID).WithError(err).Warn("failed to record send")
	}
	o.health.RecordDelivery(sender.ID)
	return providerID, nil
}

// ---- step 5: failed email retry sweep ----

func (o *Orchestrator) stepRetrySweep(ctx context.Context) error {
	o.processor.RequeueStuck(o.cfg.Pipeline.RunBudget)
	return nil
}

// ---- step 6: reply monitoring ----

func (o *Orchestrator) stepReplyMonitoring(ctx context.Context) error {
	if err := o.monitor.FetchReplies(ctx); err != nil {
		o.log.WithError(err).Warn("reply fetch incomplete")
	}
	if err := o.monitor.ClassifyNew(ctx, o.cfg.Pipeline.MaxBatchSize); err != nil {
		return err
	}
	return o.advanceMonitored()
}

// advanceMonitored moves domains that sat in monitoring_replies past the
// grace period to contacted, regardless of reply activity.
func (o *Orchestrator) advanceMonitored() error {
	cutoff := time.Now().AddDate(0, 0, -o.cfg.Pipeline.MonitorGraceDays)

	var domains []models.TargetDomain
	if err := o.db.Where("status = ? AND status_changed_at < ?",
		string(StatusMonitoringReplies), cutoff).Find(&domains).Error; err != nil {
		return fmt.Errorf("fetch monitored domains: %w", err)
	}

	for i := range domains {
		if err := o.sm.Transition(&domains[i], StatusMonitoringReplies, StatusContacted); err != nil {
			o.log.WithField("domain_id", domains[i].ID).WithError(err).Warn("could not mark contacted")
		}
	}
	return nil
}

// ---- step 7: lead forwarding ----

func (o *Orchestrator) stepLeadForwarding(ctx context.Context) error {
	return o.monitor.ForwardLeads(ctx)
}

// ---- step 8: sender account / token health ----

func (o *Orchestrator) stepSenderAccounts(ctx context.Context) error {
	var senders []models.Sender
	if err := o.db.Where("enabled = ?", true).Find(&senders).Error; err != nil {
		return fmt.Errorf("fetch senders: %w", err)
	}

	now := time.Now()
	for i := range senders {
		s := &senders[i]
		var problem string

		switch s.ProviderType {
		case models.ProviderSMTP:
			if s.SMTPHost == "" || s.SMTPPort == 0 || s.SMTPUsername == "" {
				problem = "incomplete smtp configuration"
			}
		case models.ProviderGmail:
			if s.OAuthToken == "" {
				problem = "missing oauth token"
			} else if now.After(s.OAuthExpiry) && s.OAuthRefreshToken == "" {
				problem = "oauth token expired with no refresh token"
			}
		case models.ProviderGMass:
			if o.cfg.GMass.APIKey == "" {
				problem = "gmass api key not configured"
			}
		}

		updates := map[string]interface{}{"last_tested_at": now}
		if problem != "" {
			updates["last_error"] = problem
			o.log.WithFields(logrus.Fields{
				"sender": s.FromEmail, "problem": problem,
			}).Error("sender account unusable, operator attention required")
		} else {
			updates["last_error"] = nil
		}
		o.db.Model(s).Updates(updates)
	}
	return nil
}

// ---- step 9: periodic sender health check ----

func (o *Orchestrator) stepSenderHealth(ctx context.Context) error {
	if !o.health.DueFor(o.cfg.Pipeline.HealthCheckInterval) {
		o.log.Debug("sender health check not due yet")
		return nil
	}
	return o.health.CheckAll()
}

// ---- step 10: cleanup ----

func (o *Orchestrator) stepCleanup(ctx context.Context) error {
	o.selector.ResetDailyCounters()
	o.sm.ResetStale(o.cfg.Pipeline.LockStaleAfter)

	cutoff := time.Now().AddDate(0, 0, -o.cfg.Pipeline.CleanupAfterDays)
	for _, model := range []interface{}{&models.EmailQueue{}, &models.EmailSearchQueue{}} {
		res := o.db.Unscoped().
			Where("status = ? AND updated_at < ?", models.QueueCompleted, cutoff).
			Delete(model)
		if res.Error != nil {
			o.log.WithError(res.Error).Warn("queue cleanup failed")
		} else if res.RowsAffected > 0 {
			o.log.WithField("count", res.RowsAffected).Info("aged queue items removed")
		}
	}
	return nil
}

func (o *Orchestrator) logStats(queue string, stats Stats) {
	entry := o.log.WithFields(logrus.Fields{
		"queue":     queue,
		"processed": stats.Processed,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
	})
	if stats.Failed > 0 {
		entry.WithField("errors", strings.Join(stats.Errors, "; ")).Warn("queue drained with failures")
	} else if stats.Processed > 0 {
		entry.Info("queue drained")
	}
}
