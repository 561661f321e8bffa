package e2e

import (
	"github.com/cucumber/godog"

	"correio/e2e/steps/common"
	"correio/e2e/steps/messages"
	"correio/e2e/steps/reveal"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, status and body assertions)
	common.RegisterSteps(ctx, tc)

	// Register message submission, publication and report steps
	messages.RegisterSteps(ctx, tc)

	// Register paid reveal and reply steps
	reveal.RegisterSteps(ctx, tc)
}
