package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// serveProxyRequest はAPI Gatewayのプロキシリクエストをhttp.Handlerで処理します。
func serveProxyRequest(ctx context.Context, h http.Handler, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"success": false, "error": "invalid base64 body"}`,
			}, nil
		}
		body = decoded
	}

	query := url.Values{}
	for k, v := range request.QueryStringParameters {
		query.Set(k, v)
	}
	for k, vs := range request.MultiValueQueryStringParameters {
		query[k] = vs
	}
	target := request.Path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, request.HTTPMethod, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range request.MultiValueHeaders {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	headers := make(map[string]string, len(rec.Header()))
	for k, vs := range rec.Header() {
		headers[k] = strings.Join(vs, ",")
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        rec.Code,
		Headers:           headers,
		MultiValueHeaders: rec.Header().Clone(),
	}
	if isTextContent(rec.Header().Get("Content-Type")) {
		resp.Body = rec.Body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(rec.Body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp, nil
}

// isTextContent はAPI Gatewayにそのまま渡せる本文か判定します。それ以外はbase64で返します。
func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/json",
		mediaType == "application/xml",
		strings.HasSuffix(mediaType, "+json"),
		strings.HasSuffix(mediaType, "+xml"):
		return true
	}
	return false
}
