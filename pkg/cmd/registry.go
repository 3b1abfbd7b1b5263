// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"

	"github.com/zapflow/zapflow/pkg/actions/discord"
	"github.com/zapflow/zapflow/pkg/actions/httprequest"
	"github.com/zapflow/zapflow/pkg/actions/logmsg"
	"github.com/zapflow/zapflow/pkg/actions/slack"
	"github.com/zapflow/zapflow/pkg/registry"
	"github.com/zapflow/zapflow/pkg/triggers/githubpush"
	"github.com/zapflow/zapflow/pkg/triggers/githubrepos"
	"github.com/zapflow/zapflow/pkg/triggers/gmail"
	"github.com/zapflow/zapflow/pkg/triggers/schedule"
	"github.com/zapflow/zapflow/pkg/triggers/youtube"
	"github.com/zapflow/zapflow/pkg/webhook"
)

// NewRegistry builds a registry with every native trigger and action job
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterTrigger(schedule.NewFactory())
	reg.RegisterTrigger(githubrepos.NewFactory())
	reg.RegisterTrigger(gmail.NewFactory())
	reg.RegisterTrigger(githubpush.NewFactory())
	reg.RegisterTrigger(youtube.NewFactory())

	reg.RegisterAction(discord.NewFactory())
	reg.RegisterAction(slack.NewFactory())
	reg.RegisterAction(httprequest.NewFactory())
	reg.RegisterAction(logmsg.NewFactory())

	return reg
}

// RegisterWebhookAdapters wires each webhook trigger's payload adapter into
// the delivery server.
func RegisterWebhookAdapters(server *webhook.Server) {
	server.RegisterAdapter("GithubPushJob", githubpush.NewAdapter())
	server.RegisterAdapter("YoutubeJob", youtube.NewAdapter())
}
