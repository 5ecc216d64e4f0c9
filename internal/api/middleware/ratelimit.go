package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
)

const (
	defaultBlockAfter = 10
	defaultBlockFor   = 24 * time.Hour
)

// Rule caps the requests one subject may make to a route per window. Every
// matching rule is counted; the request is rejected if any of them is over.
type Rule struct {
	Name     string
	Method   string
	Prefix   string
	Requests int
	Window   time.Duration
	// Subject names who is being counted, e.g. an IP or a user id.
	Subject func(r *http.Request) string
	// Match further narrows the rule; nil matches every request on the route.
	Match func(r *http.Request) bool
}

func (rule *Rule) matches(r *http.Request) bool {
	if r.Method != rule.Method || !strings.HasPrefix(r.URL.Path, rule.Prefix) {
		return false
	}
	return rule.Match == nil || rule.Match(r)
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Bypass           []string // IPs or CIDRs never limited
	AutoBlockEnabled bool
	BlockAfter       int           // violations per hour before a block
	BlockFor         time.Duration // block length
	Tokens           *auth.Issuer
	// Rules replaces the default chat rules when set.
	Rules []Rule
}

// RateLimiter counts requests in Redis fixed windows shared by every
// instance.
type RateLimiter struct {
	client     *redis.Client
	rules      []Rule
	bypass     ipSet
	blocks     *blocklist
	autoBlock  bool
	blockAfter int64
	blockFor   time.Duration
	tokens     *auth.Issuer
	logger     zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:     client,
		bypass:     parseIPSet(cfg.Bypass, logger),
		blocks:     &blocklist{client: client},
		autoBlock:  cfg.AutoBlockEnabled,
		blockAfter: int64(cfg.BlockAfter),
		blockFor:   cfg.BlockFor,
		tokens:     cfg.Tokens,
		logger:     logger.With().Str("component", "ratelimit").Logger(),
	}
	if rl.blockAfter <= 0 {
		rl.blockAfter = defaultBlockAfter
	}
	if rl.blockFor <= 0 {
		rl.blockFor = defaultBlockFor
	}
	rl.rules = cfg.Rules
	if len(rl.rules) == 0 {
		rl.rules = rl.defaultRules()
	}
	return rl
}

func (rl *RateLimiter) defaultRules() []Rule {
	return []Rule{
		// new Socket.IO sessions only; polls carry a sid
		{Name: "socket_handshake", Method: http.MethodGet, Prefix: SocketPath, Requests: 30, Window: time.Minute, Subject: clientIP, Match: isHandshake},
		{Name: "register", Method: http.MethodPost, Prefix: "/api/auth/register", Requests: 10, Window: time.Hour, Subject: clientIP},
		{Name: "login", Method: http.MethodPost, Prefix: "/api/auth/login", Requests: 10, Window: 15 * time.Minute, Subject: loginSubject},
		{Name: "login_ip", Method: http.MethodPost, Prefix: "/api/auth/login", Requests: 50, Window: 15 * time.Minute, Subject: clientIP},
		{Name: "users", Method: http.MethodGet, Prefix: "/api/users/", Requests: 100, Window: time.Minute, Subject: clientIP},
		{Name: "chat_read", Method: http.MethodGet, Prefix: "/api/chat/", Requests: 120, Window: time.Minute, Subject: rl.userOrIP},
	}
}

func isHandshake(r *http.Request) bool {
	return r.URL.Query().Get("sid") == ""
}

// clientIP is the host part of RemoteAddr. chi's RealIP middleware has
// already applied any proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// loginSubject counts attempts per address and account.
func loginSubject(r *http.Request) string {
	return clientIP(r) + "|" + peekEmail(r)
}

// peekEmail reads the email from a JSON body and puts the body back.
func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var in struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &in) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(in.Email))
}

// userOrIP counts authenticated readers per user and everyone else per IP.
func (rl *RateLimiter) userOrIP(r *http.Request) string {
	if rl.tokens != nil {
		if token := BearerToken(r); token != "" {
			if claims, err := rl.tokens.Validate(token); err == nil {
				return "user:" + claims.UserID
			}
		}
	}
	return "ip:" + clientIP(r)
}

type verdict struct {
	rule      *Rule
	subject   string
	allowed   bool
	remaining int
	resetAt   time.Time
}

func (v *verdict) worseThan(o *verdict) bool {
	if v.allowed != o.allowed {
		return !v.allowed
	}
	return v.remaining < o.remaining
}

// take counts one request against rule for subject. Redis errors fail open.
func (rl *RateLimiter) take(ctx context.Context, rule *Rule, subject string, now time.Time) verdict {
	bucket := now.UnixNano() / int64(rule.Window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", rule.Name, subject, bucket)
	v := verdict{
		rule:    rule,
		subject: subject,
		allowed: true,
		resetAt: time.Unix(0, (bucket+1)*int64(rule.Window)),
	}

	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rule.Window)
		return nil
	})
	if err != nil {
		rl.logger.Warn().Err(err).Str("rule", rule.Name).Msg("rate limit counter unavailable")
		v.remaining = rule.Requests
		return v
	}

	count := int(incr.Val())
	v.allowed = count <= rule.Requests
	v.remaining = max(rule.Requests-count, 0)
	return v
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.bypass.contains(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocks.isBlocked(r.Context(), ip) {
			rl.logger.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("blocked address attempted request")
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			writeError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		now := time.Now()
		var tightest *verdict
		for i := range rl.rules {
			rule := &rl.rules[i]
			if !rule.matches(r) {
				continue
			}
			v := rl.take(r.Context(), rule, rule.Subject(r), now)
			if tightest == nil || v.worseThan(tightest) {
				tightest = &v
			}
		}
		if tightest == nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tightest.rule.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tightest.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(tightest.resetAt.Unix(), 10))

		if !tightest.allowed {
			retry := int(time.Until(tightest.resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			metrics.RateLimitHits.WithLabelValues(tightest.rule.Name).Inc()
			rl.logger.Warn().
				Str("rule", tightest.rule.Name).
				Str("subject", tightest.subject).
				Str("path", r.URL.Path).
				Msg("rate limit exceeded")
			rl.recordViolation(r.Context(), ip)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// recordViolation blocks an address once it has been limited blockAfter
// times within an hour.
func (rl *RateLimiter) recordViolation(ctx context.Context, ip string) {
	if !rl.autoBlock {
		return
	}

	key := "ratelimit:violations:" + ip
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 {
		rl.client.Expire(ctx, key, time.Hour)
	}
	if count < rl.blockAfter {
		return
	}

	rl.blocks.block(ctx, ip, rl.blockFor)
	rl.client.Del(ctx, key)
	rl.logger.Warn().Str("ip", ip).Int64("violations", count).Dur("block_for", rl.blockFor).Msg("address auto-blocked")
}

// blocklist holds temporary address blocks in Redis.
type blocklist struct {
	client *redis.Client
}

func blockKey(ip string) string {
	return "ratelimit:blocked:" + ip
}

func (b *blocklist) isBlocked(ctx context.Context, ip string) bool {
	n, err := b.client.Exists(ctx, blockKey(ip)).Result()
	return err == nil && n > 0
}

func (b *blocklist) block(ctx context.Context, ip string, d time.Duration) {
	b.client.Set(ctx, blockKey(ip), time.Now().UTC().Format(time.RFC3339), d)
}

// ipSet is a list of single addresses and CIDR ranges.
type ipSet struct {
	ips  map[string]bool
	nets []*net.IPNet
}

func parseIPSet(entries []string, logger zerolog.Logger) ipSet {
	set := ipSet{ips: make(map[string]bool)}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			set.ips[entry] = true
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn().Err(err).Str("entry", entry).Msg("invalid CIDR in rate limit bypass")
			continue
		}
		set.nets = append(set.nets, ipNet)
	}
	return set
}

func (s ipSet) contains(addr string) bool {
	if s.ips[addr] {
		return true
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range s.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
