package worker

import (
	"context"
	"sync"

	"github.com/mesa-ayuda/helpdesk-service/internal/service"
)

// StartNotificationWorker registers notification handlers and starts workers
// goroutines draining the delivery queue. The returned function blocks until
// they exit after ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, workers int) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.RegisterHandlers()

	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notificationService.Run(ctx)
		}()
	}
	return wg.Wait
}
