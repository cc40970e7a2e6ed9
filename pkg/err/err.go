package errprocess

import (
	"fmt"

	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Wrap log err with the failing operation and return it wrapped, keeps errors.Is working
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(op, zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
