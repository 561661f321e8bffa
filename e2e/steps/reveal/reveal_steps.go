package reveal

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	ResponseContains(field string) bool
	GetMessageID() string
	GetPixID() string
	SetPixID(id string)
}

// RegisterSteps registers paid reveal and reply step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &revealSteps{tc: tc}

	// Reveal steps
	ctx.Step(`^user "([^"]*)" requests the sender of the saved message$`, steps.requestReveal)
	ctx.Step(`^I save the payment id$`, steps.savePaymentID)
	ctx.Step(`^the requester asserts the payment was made$`, steps.assertPaid)
	ctx.Step(`^approver "([^"]*)" approves the saved payment$`, steps.approvePayment)
	ctx.Step(`^approver "([^"]*)" denies the saved payment$`, steps.denyPayment)

	// Reply steps
	ctx.Step(`^user "([^"]*)" starts a reply to the saved message$`, steps.initiateReply)
	ctx.Step(`^user "([^"]*)" submits the reply "([^"]*)"$`, steps.submitReply)
}

type revealSteps struct {
	tc TestContext
}

func (s *revealSteps) requestReveal(ctx context.Context, userID string) error {
	if s.tc.GetMessageID() == "" {
		return fmt.Errorf("no message id saved")
	}
	return s.tc.POST("/reveal/requests", map[string]any{
		"user_id":    userID,
		"message_id": s.tc.GetMessageID(),
	})
}

func (s *revealSteps) savePaymentID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("payment.pix_id")
	if err != nil {
		return err
	}
	str, ok := id.(string)
	if !ok || str == "" {
		return fmt.Errorf("payment pix_id missing from response")
	}
	s.tc.SetPixID(str)
	return nil
}

func (s *revealSteps) assertPaid(ctx context.Context) error {
	if s.tc.GetPixID() == "" {
		return fmt.Errorf("no payment id saved")
	}
	return s.tc.POST("/reveal/"+s.tc.GetPixID()+"/paid", nil)
}

func (s *revealSteps) approvePayment(ctx context.Context, approverID string) error {
	if s.tc.GetPixID() == "" {
		return fmt.Errorf("no payment id saved")
	}
	// The server takes the approver from the JWT subject; the scenario
	// argument documents intent and must match the token in use.
	_ = approverID
	return s.tc.POST("/reveal/"+s.tc.GetPixID()+"/approve", nil)
}

func (s *revealSteps) denyPayment(ctx context.Context, approverID string) error {
	if s.tc.GetPixID() == "" {
		return fmt.Errorf("no payment id saved")
	}
	_ = approverID
	return s.tc.POST("/reveal/"+s.tc.GetPixID()+"/deny", nil)
}

func (s *revealSteps) initiateReply(ctx context.Context, userID string) error {
	if s.tc.GetMessageID() == "" {
		return fmt.Errorf("no message id saved")
	}
	return s.tc.POST("/reply/initiate", map[string]any{
		"replier_id": userID,
		"message_id": s.tc.GetMessageID(),
	})
}

func (s *revealSteps) submitReply(ctx context.Context, userID, body string) error {
	return s.tc.POST("/reply/submit", map[string]any{
		"replier_id":   userID,
		"replier_name": "Usuário " + userID,
		"body":         body,
	})
}
