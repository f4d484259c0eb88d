// Package events publishes job lifecycle transitions to a RabbitMQ topic
// exchange so other services can follow the pipeline. Routing keys have the
// form "job.<status>". Without an AMQP URL the publisher is a no-op.
package events
