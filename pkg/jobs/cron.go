package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/biblegpt/api/pkg/domain"
	"github.com/biblegpt/api/pkg/logger"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron  *cron.Cron
	subs  domain.SubscriptionRepository
	users domain.UserRepository
	email domain.EmailService
	log   logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(subs domain.SubscriptionRepository, users domain.UserRepository, email domain.EmailService, log logger.Logger) *CronManager {
	return &CronManager{
		cron:  cron.New(),
		subs:  subs,
		users: users,
		email: email,
		log:   log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	// Daily at 9 AM: remind users whose trial ends within 24 hours
	_, err := cm.cron.AddFunc("0 9 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := cm.SendTrialEndingReminders(ctx); err != nil {
			cm.log.Error("trial reminder sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	cm.log.Info("cron jobs configured", "jobs", "trial reminders daily at 9 AM")
	return nil
}

// SendTrialEndingReminders emails every trialing user whose trial ends
// within the next 24 hours and has not been reminded yet. The reminder
// timestamp on the row keeps the sweep from mailing twice.
func (cm *CronManager) SendTrialEndingReminders(ctx context.Context) error {
	now := time.Now().UTC()
	subs, err := cm.subs.ListTrialsEndingBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return err
	}

	sent := 0
	for _, sub := range subs {
		user, err := cm.users.GetByID(ctx, sub.UserID)
		if err != nil || user == nil {
			continue
		}

		name := ""
		if user.Name != nil {
			name = *user.Name
		}
		if err := cm.email.SendTrialEndingEmail(user.Email, name, *sub.TrialEndsAt); err != nil {
			cm.log.Warn("failed to send trial reminder", "user_id", sub.UserID, "error", err)
			continue
		}

		reminded := now
		sub.TrialReminderSentAt = &reminded
		if err := cm.subs.Update(ctx, sub); err != nil {
			cm.log.Warn("failed to mark trial reminder sent", "user_id", sub.UserID, "error", err)
			continue
		}
		sent++
	}

	cm.log.Info("trial reminder sweep finished", "candidates", len(subs), "sent", sent)
	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.cron.Stop()
}
