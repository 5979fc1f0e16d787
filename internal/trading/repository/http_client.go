package repository

import (
	"context"
	"errors"

	"golang-stock-trader/pkg/apperr"

	"github.com/go-resty/resty/v2"
)

// doRequest executes req and maps transport failures and error statuses
// onto apperr kinds so the retry policy can tell them apart.
func doRequest(ctx context.Context, op string, req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperr.New(apperr.KindTransient, op, err)
	}
	if resp.IsError() {
		return resp, apperr.FromStatus(op, resp.StatusCode(), resp.String())
	}
	return resp, nil
}
