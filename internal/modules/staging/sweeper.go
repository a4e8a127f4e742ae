package staging

import (
	"context"
	"log"
	"time"
)

// ScheduleSweep starts a background goroutine that periodically expires
// overdue staged uploads. Close the returned channel (or cancel the
// context) to stop it.
func (s *Service) ScheduleSweep(ctx context.Context, interval time.Duration) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := s.ExpireSweep(ctx)
				if err != nil {
					log.Printf("staging sweep error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("staging sweep: expired %d uploads", n)
				}
			case <-stopCh:
				log.Println("staging sweep stopped")
				return
			case <-ctx.Done():
				log.Println("staging sweep stopped (context Done)")
				return
			}
		}
	}()

	log.Printf("staging sweep started with interval %v", interval)
	return stopCh
}
