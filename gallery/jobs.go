package gallery

import (
	"context"
	"time"

	"github.com/freekieb7/ember/schedule"
)

// RescanJob picks up images copied into the image directory while the
// server runs.
func (g *Gallery) RescanJob(interval time.Duration) *schedule.Job {
	return schedule.NewJob("gallery-rescan").
		WithInterval(interval).
		WithTimeout(interval).
		WithTasks(func(ctx context.Context) error {
			added, err := g.Load(ctx)
			if err != nil {
				return err
			}
			if added > 0 {
				g.logger.Info("rescan found new images", "added", added, "total", g.store.Len())
			}
			return nil
		})
}
