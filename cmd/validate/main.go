// Command validate checks a deployment before the service starts: the
// environment parses into a usable configuration, the configured zone codes
// are well-formed UGC codes, and (with -check-feed) the NWS API is
// reachable and every configured zone returns a parseable alert feed.
//
// Usage:
//
//	ZONES=TXZ159,TXC039 go run ./cmd/validate -check-feed
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/config"
	"github.com/couchcryptid/storm-alert-dispatch/internal/feed"
)

// UGC public zone or county code: state, Z or C, three digits.
var ugcPattern = regexp.MustCompile(`^[A-Z]{2}[CZ][0-9]{3}$`)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	checkFeed := flag.Bool("check-feed", false, "contact the NWS API and fetch every configured zone once")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for feed checks")
	flag.Parse()

	if code := run(*checkFeed, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(checkFeed bool, timeout time.Duration) int {
	fmt.Println("=== Deployment Validation ===")
	fmt.Println()

	cfgPhase := &phase{name: "configuration"}
	cfg, err := config.Load()
	if err != nil {
		cfgPhase.errorf("%v", err)
		report([]*phase{cfgPhase})
		return 1
	}

	phases := []*phase{cfgPhase, validateZones(cfg.Zones)}
	if checkFeed {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		phases = append(phases, validateFeed(ctx, cfg))
	}

	return report(phases)
}

func validateZones(zones []string) *phase {
	p := &phase{name: "zone codes"}
	for _, zone := range zones {
		if !ugcPattern.MatchString(zone) {
			p.errorf("%s is not a UGC zone or county code (expected e.g. TXZ159 or TXC039)", zone)
		}
	}
	return p
}

func validateFeed(ctx context.Context, cfg *config.Config) *phase {
	p := &phase{name: "feed connectivity"}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := feed.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.FetchTimeout, cfg.FetchMaxRetries, quiet)

	if err := client.Ping(ctx); err != nil {
		p.errorf("API unreachable at %s: %v", cfg.NWSBaseURL, err)
		return p
	}

	for _, result := range client.FetchZones(ctx, cfg.Zones) {
		if result.Err != nil {
			p.errorf("zone %s: %v", result.Zone, result.Err)
			continue
		}
		fmt.Printf("  zone %s: %d active alert(s)\n", result.Zone, len(result.Alerts))
	}
	return p
}

func report(phases []*phase) int {
	fmt.Println()
	code := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		code = 1
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}
	return code
}
