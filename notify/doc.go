// Package notify sends outbound notifications such as "a collect was
// created". Transports are a zap log, a Redis stream and a Kafka topic;
// Async puts any of them behind a bounded queue so request paths never wait
// on delivery.
package notify
