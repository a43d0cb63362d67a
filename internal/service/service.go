// Package service implements the application's use cases on top of the
// store's unit-of-work manager. Anything that must be race-safe (invitation
// resolution, token rotation, single-use registration) runs serializable;
// plain reads run read-committed.
package service

import "time"

// nowFunc lets tests pin the clock.
type nowFunc = func() time.Time

var defaultNow = time.Now
