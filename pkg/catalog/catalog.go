// Package catalog holds the static trigger and action definitions: class
// names, payload field schemas, declared output variables, and connection
// requirements. Definitions describe what users can configure; the registry
// holds the factories that run them.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zapflow/zapflow/pkg/models"
)

func Triggers() map[string]models.TriggerDefinition {
	return map[string]models.TriggerDefinition{
		"ScheduleJob": {
			ClassName:   "ScheduleJob",
			Name:        "Schedule",
			Description: "Fires on a fixed cron schedule",
			Kind:        models.TriggerKindSchedule,
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cron": map[string]any{
						"type":        "string",
						"description": "Cron expression, five fields",
					},
				},
				"required": []any{"cron"},
			},
			OutputVariables: []string{"FiredAt"},
		},
		"GithubReposJob": {
			ClassName:   "GithubReposJob",
			Name:        "New GitHub Repository",
			Description: "Fires when the connected user creates a repository",
			Kind:        models.TriggerKindPolling,
			Fields: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			OutputVariables:    []string{"RepoName", "RepoURL", "RepoDescription"},
			RequiresConnection: true,
			PollingInterval:    5 * time.Minute,
		},
		"GmailJob": {
			ClassName:   "GmailJob",
			Name:        "New Gmail Message",
			Description: "Fires when a new message arrives in the inbox",
			Kind:        models.TriggerKindPolling,
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Gmail search query filter",
					},
				},
			},
			OutputVariables:    []string{"EmailSubject", "EmailFrom", "EmailSnippet"},
			RequiresConnection: true,
			PollingInterval:    2 * time.Minute,
		},
		"GithubPushJob": {
			ClassName:   "GithubPushJob",
			Name:        "GitHub Push",
			Description: "Fires when commits are pushed to a repository",
			Kind:        models.TriggerKindWebhook,
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"repository": map[string]any{
						"type":        "string",
						"description": "Repository in owner/name form",
					},
				},
				"required": []any{"repository"},
			},
			OutputVariables:    []string{"Ref", "CommitMessage", "Pusher"},
			RequiresConnection: true,
		},
		"YoutubeJob": {
			ClassName:   "YoutubeJob",
			Name:        "New YouTube Video",
			Description: "Fires when a channel publishes a video",
			Kind:        models.TriggerKindWebhook,
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"channel_id": map[string]any{
						"type":        "string",
						"description": "YouTube channel id to watch",
					},
				},
				"required": []any{"channel_id"},
			},
			OutputVariables: []string{"VideoTitle", "VideoURL", "ChannelName"},
		},
	}
}

func Actions() map[string]models.ActionDefinition {
	return map[string]models.ActionDefinition{
		"DiscordJob": {
			ClassName:   "DiscordJob",
			Name:        "Send Discord Message",
			Description: "Posts a message to a Discord channel",
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"channel_id": map[string]any{"type": "string"},
					"message":    map[string]any{"type": "string"},
				},
				"required": []any{"channel_id", "message"},
			},
			OutputVariables:    []string{"MessageID"},
			RequiresConnection: true,
		},
		"SlackJob": {
			ClassName:   "SlackJob",
			Name:        "Send Slack Message",
			Description: "Posts a message to a Slack channel",
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"channel": map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
				},
				"required": []any{"channel", "message"},
			},
			OutputVariables:    []string{"MessageTimestamp"},
			RequiresConnection: true,
		},
		"HttpRequestJob": {
			ClassName:   "HttpRequestJob",
			Name:        "HTTP Request",
			Description: "Performs an HTTP request and captures the response",
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":    map[string]any{"type": "string"},
					"method": map[string]any{
						"type": "string",
						"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
					},
					"body":    map[string]any{"type": "string"},
					"headers": map[string]any{"type": "object"},
					"timeout": map[string]any{"type": "integer", "minimum": float64(1)},
					"retries": map[string]any{"type": "integer", "minimum": float64(0)},
				},
				"required": []any{"url"},
			},
			OutputVariables: []string{"StatusCode", "ResponseBody"},
		},
		"LogJob": {
			ClassName:   "LogJob",
			Name:        "Log Message",
			Description: "Writes a message to the worker log",
			Fields: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
					"level":   map[string]any{
						"type": "string",
						"enum": []any{"debug", "info", "warn", "error"},
					},
				},
				"required": []any{"message"},
			},
		},
	}
}

func TriggerByClassName(className string) (models.TriggerDefinition, bool) {
	definition, ok := Triggers()[className]

	return definition, ok
}

func ActionByClassName(className string) (models.ActionDefinition, bool) {
	definition, ok := Actions()[className]

	return definition, ok
}

// ValidateTriggerPayload checks a trigger step's payload against the
// definition's field schema.
func ValidateTriggerPayload(className string, payload map[string]any) error {
	definition, ok := TriggerByClassName(className)
	if !ok {
		return fmt.Errorf("unknown trigger class %q", className)
	}

	return validatePayload(definition.Fields, payload)
}

// ValidateActionPayload checks an action step's payload against the
// definition's field schema.
func ValidateActionPayload(className string, payload map[string]any) error {
	definition, ok := ActionByClassName(className)
	if !ok {
		return fmt.Errorf("unknown action class %q", className)
	}

	return validatePayload(definition.Fields, payload)
}

func validatePayload(schema map[string]any, payload map[string]any) error {
	if schema == nil {
		return nil
	}

	if payload == nil {
		payload = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate payload: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
