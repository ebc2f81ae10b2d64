package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yoockh/prepdeck/internal/utils"
)

// validate checks the structural shape of capture-pipeline input. Answer
// content is never evaluated here.
var validate = validator.New(validator.WithRequiredStructEnabled())

func validationErr(op string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return utils.E(utils.CodeInvalidArgument, op, "invalid fields: "+strings.Join(fields, ", "), err)
	}
	return utils.E(utils.CodeInvalidArgument, op, "invalid input", err)
}
