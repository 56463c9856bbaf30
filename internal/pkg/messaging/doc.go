// Package messaging publishes and consumes notification jobs over NSQ, NATS,
// Kafka, Google Pub/Sub or RabbitMQ behind one interface.
//
// Delivery is at least once. Brokers without native redelivery (NATS core,
// Kafka) and RabbitMQ requeue a nacked message by republishing it with an
// incremented x-attempt header, up to WithMaxAttempts. Delayed adds deferred
// delivery through Redis for brokers that cannot defer on their own.
package messaging
