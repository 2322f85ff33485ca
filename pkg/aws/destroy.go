package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
	"github.com/pivotal/ciborg/internal/models"
)

// ConfirmFunc decides whether a single instance may be destroyed
type ConfirmFunc func(instance models.InstanceInfo) bool

// DestroyEC2 terminates the instances selected by target that confirm
// approves. confirm is asked about every candidate, including when target is
// AllInstances. A failed termination does not stop the remaining ones; the
// report says what happened to each instance and the returned error joins
// the failures. Ids EC2 does not know are reported as failed with
// ErrNotFound. Elastic IPs are not released.
func (s *Session) DestroyEC2(ctx context.Context, confirm ConfirmFunc, target Target) (*models.DestroyReport, error) {
	log := clog.FromContext(ctx)

	if confirm == nil {
		return nil, fmt.Errorf("%w: a confirmation function is required to destroy instances", ErrConfiguration)
	}

	candidates, missing, err := s.lookupInstances(ctx, target)
	if err != nil {
		return nil, err
	}

	client, err := s.EC2(ctx)
	if err != nil {
		return nil, err
	}

	report := models.NewDestroyReport()
	var errs []error
	for _, id := range missing {
		err := fmt.Errorf("%w: instance %s", ErrNotFound, id)
		report.Failed[id] = err
		errs = append(errs, err)
	}
	for _, instance := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if !confirm(instance) {
			log.Debug("destroy declined", "id", instance.InstanceID)
			report.Declined = append(report.Declined, instance.InstanceID)
			continue
		}

		_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
			InstanceIds: []string{instance.InstanceID},
		})
		if err != nil {
			err = fmt.Errorf("error terminating instance %s: %w", instance.InstanceID, classify(err))
			report.Failed[instance.InstanceID] = err
			errs = append(errs, err)
			continue
		}

		log.Debug("terminating instance", "id", instance.InstanceID, "ip", instance.PublicIP)
		report.Destroyed = append(report.Destroyed, instance.InstanceID)
	}

	return report, errors.Join(errs...)
}
