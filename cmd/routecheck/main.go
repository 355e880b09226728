// routecheck verifies the route registry at build time: exit 0 means
// every route is compliant, non-zero means at least one violation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/httpserver"
	"github.com/vahri/branchguard/internal/routecheck"
)

func main() {
	quiet := pflag.Bool("quiet", false, "suppress the success message")
	pflag.Parse()

	// The table is built purely for inspection: no database, no server.
	routes := httpserver.Routes(nil, config.Config{}, zap.NewNop())
	violations := routecheck.Verify(routes, routecheck.DefaultCritical())

	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v.String())
		}
		os.Exit(1)
	}
	if !*quiet {
		fmt.Printf("routecheck: %d routes compliant\n", len(routes))
	}
}
