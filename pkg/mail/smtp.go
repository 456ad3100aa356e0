// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/go-logr/logr"

	"github.com/gardener/sprinkler/pkg/apis/config"
)

// SMTPNotifier delivers irrigation notifications through a plain SMTP relay.
type SMTPNotifier struct {
	from string
	addr string
	log  logr.Logger

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates a Notifier backed by the configured relay.
func NewSMTPNotifier(cfg config.MailConfiguration, log logr.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		from: cfg.From,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		log:  log.WithName("mail"),
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// NotifyIrrigationStarted implements Notifier.
func (n *SMTPNotifier) NotifyIrrigationStarted(_ context.Context, email, plantName string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Irrigation started\r\n\r\nYour plant %q is being watered.\r\n",
		n.from, email, plantName)
	if err := n.send(n.addr, n.from, []string{email}, []byte(msg)); err != nil {
		n.log.Error(err, "Cannot deliver irrigation notification", "email", email, "plant", plantName)
		return err
	}
	return nil
}
