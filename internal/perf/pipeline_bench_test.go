package perf_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/catalog"
	"github.com/tayloree/pricecli/internal/display"
	"github.com/tayloree/pricecli/internal/filter"
)

func strPtr(v string) *string { return &v }

func benchmarkScrape(count int) api.ScrapeResponse {
	resp := api.ScrapeResponse{
		TotalScraped: count,
		TotalSaved:   count,
		Products:     make([]api.Product, 0, count),
		RawItems:     make([]api.RawItem, 0, count*2),
	}
	for i := range count {
		name := fmt.Sprintf("Memoria RAM DDR4 %dGB modelo %d", 8<<(i%3), i)
		category := "memoria"
		if i%4 == 0 {
			name = fmt.Sprintf("SSD NVMe %dGB modelo %d", 256<<(i%3), i)
			category = "ssd"
		}
		if i%7 == 0 {
			name = fmt.Sprintf("Fonte %dW modelo %d", 450+(i%5)*50, i)
			category = "fonte"
		}
		price := decimal.NewFromInt(int64(100 + (i*37)%900)).Add(decimal.RequireFromString("0.90"))
		source := fmt.Sprintf("https://store.test/produto/%d/item", i)

		resp.Products = append(resp.Products, api.Product{
			ID:          int64(i + 1),
			Name:        name,
			Category:    strPtr(category),
			LowestPrice: price,
			Currency:    strPtr("BRL"),
			SourceURL:   source,
		})
		resp.RawItems = append(resp.RawItems,
			api.RawItem{URL: source, Title: strPtr(name), Price: decimal.NewNullDecimal(price), Currency: strPtr("BRL")},
			api.RawItem{URL: source + "?ref=list", Title: strPtr(name + " (oferta)")},
		)
	}
	return resp
}

func setupPipelineServer(b *testing.B, productCount int) *catalog.Service {
	b.Helper()

	payload, err := json.Marshal(benchmarkScrape(productCount))
	if err != nil {
		b.Fatalf("marshal scrape payload: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/scrape/urls":
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	b.Cleanup(server.Close)

	client := api.NewClientWithBaseURL(server.URL, 10*time.Second)
	cfg := catalog.DefaultConfig()
	cfg.RequestsPerSecond = 0
	return catalog.New(client, nil, cfg)
}

func runPipeline(b *testing.B, svc *catalog.Service) {
	b.Helper()

	passthrough := 1.0
	result, err := svc.Scrape(context.Background(), []string{"https://store.test/produto/1/item"}, catalog.ScrapeOptions{
		Query:       "memoria ddr4",
		Temperature: &passthrough,
	})
	if err != nil {
		b.Fatalf("scrape: %v", err)
	}

	filtered := filter.Apply(result.Products, filter.Options{
		Category: "memoria",
		MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(800)),
		Sort:     filter.SortPriceAsc,
		Limit:    50,
	})
	if len(filtered) == 0 {
		b.Fatalf("filter returned no products")
	}
	if err := display.PrintResultJSON(io.Discard, result, filtered, nil); err != nil {
		b.Fatalf("print result json: %v", err)
	}
}

func BenchmarkScrapePipeline_1kProducts(b *testing.B) {
	svc := setupPipelineServer(b, 1000)

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		runPipeline(b, svc)
	}
}

func BenchmarkScrapePipeline_5kProducts(b *testing.B) {
	svc := setupPipelineServer(b, 5000)

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		runPipeline(b, svc)
	}
}
