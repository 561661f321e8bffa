package messages

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetMessageID() string
	SetMessageID(id string)
}

// RegisterSteps registers message submission and moderation step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &messageSteps{tc: tc}

	// Submission steps
	ctx.Step(`^user "([^"]*)" sends "([^"]*)" an anonymous message saying "([^"]*)"$`, steps.sendMessage)
	ctx.Step(`^I save the message id$`, steps.saveMessageID)
	ctx.Step(`^I fetch the saved message$`, steps.fetchSavedMessage)

	// Publication steps
	ctx.Step(`^the publication cycle runs$`, steps.runPublicationCycle)
	ctx.Step(`^the saved message is published$`, steps.publishSavedMessage)

	// Report steps
	ctx.Step(`^user "([^"]*)" reports the saved message$`, steps.reportSavedMessage)
}

type messageSteps struct {
	tc TestContext
}

func (s *messageSteps) sendMessage(ctx context.Context, senderID, recipient, body string) error {
	return s.tc.POST("/relay/messages", map[string]any{
		"sender_id":   senderID,
		"sender_name": "Remetente " + senderID,
		"recipient":   recipient,
		"body":        body,
	})
}

func (s *messageSteps) saveMessageID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	str, ok := id.(string)
	if !ok || str == "" {
		return fmt.Errorf("message id missing from response")
	}
	s.tc.SetMessageID(str)
	return nil
}

func (s *messageSteps) fetchSavedMessage(ctx context.Context) error {
	if s.tc.GetMessageID() == "" {
		return fmt.Errorf("no message id saved")
	}
	return s.tc.GET("/relay/messages/"+s.tc.GetMessageID(), nil)
}

func (s *messageSteps) runPublicationCycle(ctx context.Context) error {
	return s.tc.POST("/relay/publish", nil)
}

func (s *messageSteps) publishSavedMessage(ctx context.Context) error {
	if s.tc.GetMessageID() == "" {
		return fmt.Errorf("no message id saved")
	}
	return s.tc.POST("/relay/publish/"+s.tc.GetMessageID(), nil)
}

func (s *messageSteps) reportSavedMessage(ctx context.Context, userID string) error {
	if s.tc.GetMessageID() == "" {
		return fmt.Errorf("no message id saved")
	}
	return s.tc.POST("/relay/messages/"+s.tc.GetMessageID()+"/report", map[string]any{
		"user_id":   userID,
		"user_name": "Usuário " + userID,
	})
}
