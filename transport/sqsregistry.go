package transport

import (
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/kryptonrpc/export/internal/log"
	"github.com/kryptonrpc/export/internal/xerr"
)

// sqsregistryTransport registers a service's export descriptor by
// pushing its full string form onto an SQS queue named by the registry
// descriptor's queue= parameter (default: the registry descriptor's
// path), so a separate discovery process can drain the queue instead of
// the caller dialing the provider directly.
//
// Grounded on kryptco-kr's AWSTransport shape:
// getSQSService/CreateQueue/SendToQueue/ReceiveAndDeleteFromQueue, rewired
// here to register an export rather than relay a paired device's messages.
type sqsregistryTransport struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

var sqsregistry = &sqsregistryTransport{sessions: map[string]*session.Session{}}

func init() {
	Register("sqsregistry", sqsregistry)
}

func (t *sqsregistryTransport) DefaultPort() uint16 { return 0 }

func (t *sqsregistryTransport) session(region string) (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[region]; ok {
		return s, nil
	}
	s, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, err
	}
	t.sessions[region] = s
	return s, nil
}

func (t *sqsregistryTransport) Export(invoker Invoker) (Exporter, error) {
	region := invoker.Descriptor.Parameter("region", "us-east-1")
	queueName := invoker.Descriptor.Parameter("queue", invoker.Descriptor.Path())
	exportParam := invoker.Descriptor.Parameter("export", "")
	if exportParam == "" {
		return nil, &xerr.ConfigurationError{Reason: "sqsregistry export requires an export= parameter"}
	}

	sess, err := t.session(region)
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: "sqsregistry", Registry: invoker.Descriptor.Address(), Cause: err}
	}
	svc := sqs.New(sess)

	createOut, err := svc.CreateQueue(&sqs.CreateQueueInput{
		QueueName: aws.String(queueName),
		Attributes: map[string]*string{
			sqs.QueueAttributeNameMessageRetentionPeriod: aws.String(strconv.Itoa(86400)),
		},
	})
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: "sqsregistry", Registry: invoker.Descriptor.Address(), Cause: err}
	}

	_, err = svc.SendMessage(&sqs.SendMessageInput{
		QueueUrl:    createOut.QueueUrl,
		MessageBody: aws.String(exportParam),
	})
	if err != nil {
		return nil, &xerr.ExportFailure{Protocol: "sqsregistry", Registry: invoker.Descriptor.Address(), Cause: err}
	}

	queueURL := *createOut.QueueUrl
	var once sync.Once
	return exporterFunc(func() error {
		var unregErr error
		once.Do(func() {
			_, unregErr = svc.SendMessage(&sqs.SendMessageInput{
				QueueUrl:    aws.String(queueURL),
				MessageBody: aws.String("unexport:" + invoker.Descriptor.Path()),
			})
			if unregErr != nil {
				log.Warnf("transport/sqsregistry: failed to send unexport notice for %s: %v", invoker.Descriptor.Path(), unregErr)
			}
		})
		return unregErr
	}), nil
}
