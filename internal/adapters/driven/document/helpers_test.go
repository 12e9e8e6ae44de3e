//go:build unit

package document

import (
	"errors"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// asSignServiceError unwraps err into a SignServiceError.
func asSignServiceError(err error, target **domain.SignServiceError) bool {
	return errors.As(err, target)
}
