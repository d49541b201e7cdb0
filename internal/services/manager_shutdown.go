package services

import (
	"context"
	"crypto/rsa"
	"log"
	"os"

	"github.com/codetrek/cloudsync/internal/auth"
)

func (m *Manager) Shutdown(ctx context.Context) {
	// Close storage providers if initialized
	if m.factory != nil {
		defer func() {
			if err := m.factory.Close(ctx); err != nil {
				log.Printf("Error closing storage: %v", err)
			}
		}()
	}

	for i, srv := range m.servers {
		log.Printf("Stopping %s...", m.serverNames[i])
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down %s: %v", m.serverNames[i], err)
		}
	}

	// Stop background tasks (feed consumer) and wait for them
	if m.bgCancel != nil {
		m.bgCancel()
	}
	log.Println("Waiting for background tasks to finish...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Background tasks finished.")
	case <-ctx.Done():
		log.Println("Timeout waiting for background tasks.")
	}

	// Close NATS connection
	if m.natsConn != nil {
		log.Println("Closing NATS connection...")
		m.natsConn.Close()
	}
}

// loadOrCreateKey loads the signing key, generating and persisting one on
// first start.
func loadOrCreateKey(path string) (*rsa.PrivateKey, error) {
	key, err := auth.LoadPrivateKey(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key, err = auth.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := auth.SavePrivateKey(path, key); err != nil {
		return nil, err
	}
	log.Printf("Generated new signing key at %s", path)
	return key, nil
}
