package main

import (
	"context"
	"log"

	config "smartwaste-api/configs"
	"smartwaste-api/pkg/handlers"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var router *gin.Engine

func init() {
	// Lambdaでは環境変数で設定するため.envは任意
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()
	deps, _, err := handlers.NewDependencies(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	router = handlers.NewRouter(deps)
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Printf("Received request: %s %s", request.HTTPMethod, request.Path)
	return serveProxyRequest(ctx, router, request)
}

func main() {
	lambda.Start(handler)
}
