package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"linkreach/models"
)

// Classification is the coarse intent assigned to an inbound reply.
type Classification struct {
	Label     string
	Rationale string
}

// Lexicons for the rule pass. Matched against lowercased subject+body;
// order matters: bounce and auto-reply signals win over everything else.
var (
	bouncePhrases = []string{
		"mailer-daemon", "delivery status notification", "undeliverable",
		"address not found", "mailbox unavailable", "message could not be delivered",
	}
	autoReplyPhrases = []string{
		"out of office", "auto-reply", "automatic reply", "autoreply",
		"on vacation", "currently away",
	}
	notInterestedPhrases = []string{
		"not interested", "no thanks", "unsubscribe", "remove me",
		"stop emailing", "do not contact", "not a good fit",
	}
	interestedPhrases = []string{
		"interested", "sounds good", "tell me more", "let's talk",
		"lets talk", "schedule a call", "pricing", "happy to discuss",
		"send more details", "sounds interesting",
	}
)

// classifyText is the deterministic rule pass.
func classifyText(subject, body string) Classification {
	text := strings.ToLower(subject + "\n" + body)

	for _, p := range bouncePhrases {
		if strings.Contains(text, p) {
			return Classification{models.ReplyBounce, "matched bounce phrase: " + p}
		}
	}
	for _, p := range autoReplyPhrases {
		if strings.Contains(text, p) {
			return Classification{models.ReplyAutoReply, "matched auto-reply phrase: " + p}
		}
	}
	// "not interested" contains "interested", so the negative lexicon runs first
	for _, p := range notInterestedPhrases {
		if strings.Contains(text, p) {
			return Classification{models.ReplyNotInterested, "matched rejection phrase: " + p}
		}
	}
	for _, p := range interestedPhrases {
		if strings.Contains(text, p) {
			return Classification{models.ReplyInterested, "matched interest phrase: " + p}
		}
	}
	return Classification{models.ReplyNeutral, "no lexicon match"}
}

// Classifier assigns intent labels to inbound replies. Results are
// cached by message id (redis when enabled, the reply row always) so a
// message is never classified twice.
type Classifier struct {
	db    *gorm.DB
	cache *redis.Client // nil when redis is disabled
	llm   LLMClient     // nil when no LLM is configured
	log   *logrus.Logger
}

func NewClassifier(db *gorm.DB, cache *redis.Client, llm LLMClient, log *logrus.Logger) *Classifier {
	return &Classifier{db: db, cache: cache, llm: llm, log: log}
}

// Classify labels one reply and persists the result. Stable: a reply
// already carrying a label (or cached under its message id) is returned
// as-is.
func (c *Classifier) Classify(ctx context.Context, reply *models.InboundReply) (Classification, error) {
	if reply.Classification != "" {
		return Classification{reply.Classification, reply.Rationale}, nil
	}
	if cached, ok := c.cacheGet(ctx, reply.MessageID); ok {
		c.persist(reply, cached)
		return cached, nil
	}

	result := classifyText(reply.Subject, reply.Body)

	// LLM refinement only for messages the lexicon could not place
	if result.Label == models.ReplyNeutral && c.llm != nil {
		if refined, err := c.refineWithLLM(ctx, reply); err != nil {
			c.log.WithField("message_id", reply.MessageID).WithError(err).
				Warn("llm refinement failed, keeping rule result")
		} else {
			result = refined
		}
	}

	c.persist(reply, result)
	c.cacheSet(ctx, reply.MessageID, result)

	c.log.WithFields(logrus.Fields{
		"message_id": reply.MessageID,
		"from":       reply.FromEmail,
		"label":      result.Label,
	}).Info("reply classified")
	return result, nil
}

func (c *Classifier) refineWithLLM(ctx context.Context, reply *models.InboundReply) (Classification, error) {
	prompt := "Classify the intent of this reply to a cold outreach email. " +
		"Answer with exactly one word: interested, not_interested or neutral.\n\n" +
		"Subject: " + reply.Subject + "\n\n" + reply.Body

	raw, err := c.llm.Analyze(ctx, prompt)
	if err != nil {
		return Classification{}, err
	}

	label := strings.ToLower(strings.TrimSpace(strings.Split(raw, "\n")[0]))
	switch label {
	case models.ReplyInterested, models.ReplyNotInterested, models.ReplyNeutral:
		return Classification{label, "llm: " + strings.TrimSpace(raw)}, nil
	default:
		return Classification{models.ReplyNeutral, "llm returned unrecognized label: " + label}, nil
	}
}

func (c *Classifier) persist(reply *models.InboundReply, cls Classification) {
	now := time.Now()
	reply.Classification = cls.Label
	reply.Rationale = cls.Rationale
	reply.ClassifiedAt = &now

	if err := c.db.Model(&models.InboundReply{}).Where("id = ?", reply.ID).
		Updates(map[string]interface{}{
			"classification": cls.Label,
			"rationale":      cls.Rationale,
			"classified_at":  now,
		}).Error; err != nil {
		c.log.WithField("reply_id", reply.ID).WithError(err).Warn("failed to persist classification")
	}
}

func (c *Classifier) cacheGet(ctx context.Context, messageID string) (Classification, bool) {
	if c.cache == nil {
		return Classification{}, false
	}
	val, err := c.cache.Get(ctx, "classify:"+messageID).Result()
	if err != nil {
		return Classification{}, false
	}
	parts := strings.SplitN(val, "|", 2)
	if len(parts) != 2 {
		return Classification{}, false
	}
	return Classification{parts[0], parts[1]}, true
}

func (c *Classifier) cacheSet(ctx context.Context, messageID string, cls Classification) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, "classify:"+messageID, cls.Label+"|"+cls.Rationale, 30*24*time.Hour).Err(); err != nil {
		c.log.WithError(err).Debug("classification cache write failed")
	}
}
