package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"llm-quiz-service/internal/app"
)

// PassageCache caches expanded topic passages with a TTL so repeated
// quizzes on a popular topic do not re-pay the completion call. Question
// generation always passes through: every quiz gets fresh questions.
type PassageCache struct {
	inner app.Generator
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPassage
}

type cachedPassage struct {
	text      string
	expiresAt time.Time
}

func NewPassageCache(inner app.Generator, ttl time.Duration) *PassageCache {
	return &PassageCache{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedPassage),
	}
}

func (c *PassageCache) ExpandTopic(ctx context.Context, topic string) (string, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[topic]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.text, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(topic, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[topic]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.text, nil
		}
		c.mu.RUnlock()

		text, err := c.inner.ExpandTopic(ctx, topic)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.cache[topic] = cachedPassage{
			text:      text,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *PassageCache) GenerateQuestions(ctx context.Context, contextText string, n int) (string, error) {
	return c.inner.GenerateQuestions(ctx, contextText, n)
}

func (c *PassageCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
