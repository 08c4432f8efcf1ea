package queries

import (
	"context"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	domainerrors "cratewatch/contexts/integrations/import-service/domain/errors"
	"cratewatch/contexts/integrations/import-service/ports"
)

const defaultLimit = 20

type GetJobUseCase struct {
	Jobs ports.ImportJobRepository
}

func (uc GetJobUseCase) Execute(ctx context.Context, userID string, jobID string) (entities.ImportJob, error) {
	job, err := uc.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return entities.ImportJob{}, err
	}
	if job.UserID != userID {
		return entities.ImportJob{}, domainerrors.ErrJobNotFound
	}
	return job, nil
}

type ListJobsUseCase struct {
	Jobs ports.ImportJobRepository
}

func (uc ListJobsUseCase) Execute(ctx context.Context, userID string, limit int) ([]entities.ImportJob, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return uc.Jobs.ListJobsByUser(ctx, userID, limit)
}
