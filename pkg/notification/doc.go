// Package notification carries outbound mail from the services that
// produce it to the SMTP server that delivers it.
//
// Producers publish a MailRequest through a MailPublisher. In production that
// is a RedisMailQueue, which LPUSHes the JSON encoded request onto a Redis
// list:
//
//	{"to": ["user@example.com"], "subject": "...", "body": "...", "isHtml": true}
//
// The mailer binary runs a Dispatcher that BRPOPs the same list and hands
// each message to an EmailNotifier (SMTP via go-mail).
//
// Delivery is at most once. Publishing failures are the caller's to log and
// the dispatcher does not retry a message whose delivery failed.
//
// MockPublisher records published requests for tests.
package notification
