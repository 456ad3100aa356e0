// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"

	"github.com/go-logr/logr"
)

// Notifier is the hook invoked when an irrigation session reports its first
// progress pulse, so the plant owner learns about watering that started while
// the app was closed. Delivery is best-effort.
type Notifier interface {
	NotifyIrrigationStarted(ctx context.Context, email, plantName string) error
}

// LogNotifier only logs notifications. It is used when mail delivery is
// disabled and in tests.
type LogNotifier struct {
	Log logr.Logger
}

// NotifyIrrigationStarted implements Notifier.
func (n *LogNotifier) NotifyIrrigationStarted(_ context.Context, email, plantName string) error {
	n.Log.Info("Irrigation started notification", "email", email, "plant", plantName)
	return nil
}
