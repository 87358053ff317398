// Package task runs background jobs outside the request path. DueSweep walks
// every learner with due cards and hands a Reminder to a ReminderSink; it is
// started by an external scheduler through the sweep command and keeps no
// state between runs.
package task
