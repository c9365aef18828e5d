package email

import (
	"log"
	"sync"
)

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
}

// Queue sends templated emails from a fixed pool of workers so HTTP handlers
// never block on SMTP.
type Queue struct {
	service *Service
	jobs    chan queuedEmail
	wg      sync.WaitGroup
}

// NewQueue creates an email queue with the given number of workers
func NewQueue(service *Service, workers int) *Queue {
	q := &Queue{
		service: service,
		jobs:    make(chan queuedEmail, 100),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.service.SendWithTemplate(job.to, job.subject, job.templateName, job.data); err != nil {
			log.Printf("[Email] Failed to send %q to %v: %v", job.subject, job.to, err)
		}
	}
}

// Enqueue queues an email; drops it if the queue is full
func (q *Queue) Enqueue(to []string, subject, templateName string, data interface{}) {
	select {
	case q.jobs <- queuedEmail{to: to, subject: subject, templateName: templateName, data: data}:
	default:
		log.Printf("[Email] Queue full, dropping email %q to %v", subject, to)
	}
}

// Stop drains the queue and stops the workers
func (q *Queue) Stop() {
	close(q.jobs)
	q.wg.Wait()
}
