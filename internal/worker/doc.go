// Package worker implements the template worker lifecycle and Redis Streams integration.
//
// The worker reads render requests from a Redis Stream through a consumer
// group, renders them against a template registry and publishes the output
// on a result stream. Failed requests go to the result stream name with an
// ".errors" suffix. Every message is acknowledged, rendered or not.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	processor := worker.NewProcessor(cfg.WorkerID, registry, logger)
//
//	w := worker.NewWorker(cfg, redisClient, processor, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// A request names a registered template or carries an inline source:
//
//	{"id": "r-1", "template": "league", "data": {"teams": [...]}}
//	{"source": "Hello {{name}}", "data": {"name": "Ada"}}
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, redisClient, registryCount, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
