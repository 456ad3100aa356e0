// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/robfig/cron"
)

// inviteCodeCharset deliberately omits characters that are easily confused when
// codes are shared verbally or in handwriting (0/O, 1/I/L).
const inviteCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the length of garden invite codes.
const InviteCodeLength = 6

// GenerateInviteCode returns a random invite code of InviteCodeLength characters
// from an unambiguous upper-case dictionary.
func GenerateInviteCode() (string, error) {
	return GenerateRandomStringFromCharset(InviteCodeLength, inviteCodeCharset)
}

// GenerateRandomStringFromCharset generates a cryptographically secure random
// string of the given length from the given charset.
func GenerateRandomStringFromCharset(n int, charset string) (string, error) {
	output := make([]byte, n)
	max := new(big.Int).SetInt64(int64(len(charset)))
	for i := range output {
		randomCharacter, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		output[i] = charset[randomCharacter.Int64()]
	}
	return string(output), nil
}

// NormalizeEmail case-folds and trims an email address. All identity lookups and
// writes go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeInviteCode case-folds an invite code for lookups.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var scheduleDays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// ValidateSchedule checks a watering schedule of week days plus a HH:MM time of
// day. The time is validated by parsing it as a cron spec, the same way shoot
// hibernation schedules are handled.
func ValidateSchedule(days []string, timeOfDay string) error {
	if len(days) == 0 {
		return fmt.Errorf("schedule needs at least one day")
	}
	for _, day := range days {
		if _, ok := scheduleDays[strings.ToLower(day)]; !ok {
			return fmt.Errorf("invalid schedule day %q", day)
		}
	}

	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid schedule time %q: %w", timeOfDay, err)
	}
	if _, err := cron.Parse(fmt.Sprintf("0 %d %d * * *", minute, hour)); err != nil {
		return fmt.Errorf("invalid schedule time %q: %w", timeOfDay, err)
	}
	return nil
}
