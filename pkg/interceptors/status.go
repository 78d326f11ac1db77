package interceptors

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"siting/pkg/apperror"
)

// Validator запрос, который умеет проверить себя сам
type Validator interface {
	Validate() error
}

// Status отсекает невалидные запросы до обработчика и переводит ошибки
// обработчика в gRPC статус через apperror.ToGRPC
func Status() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := validate(req); err != nil {
			return nil, err
		}
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, apperror.ToGRPC(err)
		}
		return resp, nil
	}
}

// validate ошибка apperror сохраняет свой код, остальные дают InvalidArgument
func validate(req any) error {
	v, ok := req.(Validator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.GRPCStatus().Err()
	}
	return status.Error(codes.InvalidArgument, "validation error: "+err.Error())
}
