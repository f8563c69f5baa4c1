package crawl

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const robotsCacheTTL = 1 * time.Hour

type robotsRules struct {
	delay     time.Duration
	disallow  []string // path prefixes
	fetchedAt time.Time
}

func (c *Crawler) getRobotsRules(ctx context.Context, siteURL *url.URL) *robotsRules {
	if siteURL == nil {
		return &robotsRules{delay: c.minCrawlDelay}
	}
	base := siteURL.Scheme + "://" + siteURL.Host

	c.mu.Lock()
	if rules, ok := c.robotsCache[base]; ok && time.Since(rules.fetchedAt) < robotsCacheTTL {
		c.mu.Unlock()
		return rules
	}
	c.mu.Unlock()

	body, err := c.fetchRaw(ctx, base+"/robots.txt")
	if err != nil {
		rules := &robotsRules{delay: c.minCrawlDelay, fetchedAt: time.Now()}
		c.mu.Lock()
		c.robotsCache[base] = rules
		c.mu.Unlock()
		return rules
	}
	rules := parseRobotsTxt(string(body), c.userAgent)
	rules.fetchedAt = time.Now()
	if rules.delay < c.minCrawlDelay {
		rules.delay = c.minCrawlDelay
	}
	if rules.delay > maxCrawlDelay {
		rules.delay = maxCrawlDelay
	}

	c.mu.Lock()
	c.robotsCache[base] = rules
	c.mu.Unlock()

	return rules
}

func (c *Crawler) isAllowedByRobots(rules *robotsRules, pageURL string) bool {
	if rules == nil || len(rules.disallow) == 0 {
		return true
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	path := parsed.Path
	for _, prefix := range rules.disallow {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// matchesUA returns true if the robots.txt agent token matches the crawler's
// user-agent using case-insensitive prefix matching per RFC 9309 §2.2.1.
// e.g. "bellhopbot" matches "bellhopbot/1.0".
func matchesUA(robotsAgent, crawlerUA string) bool {
	return strings.HasPrefix(crawlerUA, robotsAgent)
}

func parseRobotsTxt(body, userAgent string) *robotsRules {
	userAgent = strings.ToLower(userAgent)

	var wildcardRules robotsRules
	var specificRules robotsRules
	var matchedSpecific bool
	var currentAgents []string
	var lastDirective string

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		switch directive {
		case "user-agent":
			// Per RFC 9309: consecutive user-agent lines form a single group.
			if lastDirective == "user-agent" {
				currentAgents = append(currentAgents, strings.ToLower(value))
			} else {
				currentAgents = []string{strings.ToLower(value)}
			}
		case "crawl-delay":
			if len(currentAgents) == 0 {
				continue
			}
			parsed, err := time.ParseDuration(value + "s")
			if err != nil {
				continue
			}
			for _, agent := range currentAgents {
				if matchesUA(agent, userAgent) {
					specificRules.delay = parsed
					matchedSpecific = true
				} else if agent == "*" {
					wildcardRules.delay = parsed
				}
			}
		case "disallow":
			if len(currentAgents) == 0 || value == "" {
				continue
			}
			for _, agent := range currentAgents {
				if matchesUA(agent, userAgent) {
					specificRules.disallow = append(specificRules.disallow, value)
					matchedSpecific = true
				} else if agent == "*" {
					wildcardRules.disallow = append(wildcardRules.disallow, value)
				}
			}
		}
		lastDirective = directive
	}

	if matchedSpecific {
		return &specificRules
	}
	return &wildcardRules
}
