package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"nexus/pkg/logger"
)

type FirestoreOptions struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

func (o FirestoreOptions) clientOptions() []option.ClientOption {
	switch {
	case o.CredentialsJSON != "":
		logger.Info("Using Firestore credentials from environment")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(o.CredentialsJSON))}
	case o.CredentialsFile != "":
		logger.Info("Using Firestore credentials file %s", o.CredentialsFile)
		return []option.ClientOption{option.WithCredentialsFile(o.CredentialsFile)}
	}
	// application default credentials, or the emulator when
	// FIRESTORE_EMULATOR_HOST is set
	return nil
}

// ConnectFirestore creates a client and probes it with a collection listing,
// since NewClient itself never touches the network.
func ConnectFirestore(ctx context.Context, opts FirestoreOptions, policy RetryPolicy) (*firestore.Client, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store")
	}

	client, err := firestore.NewClient(ctx, opts.ProjectID, opts.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	err = withRetry(ctx, "Firestore", policy, func(ctx context.Context) error {
		iter := client.Collections(ctx)
		_, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		return err
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach Firestore: %w", err)
	}

	logger.Info("Connected to Firestore project %s", opts.ProjectID)
	return client, nil
}
