package main

import (
	"flag"
	"fmt"
	"log"
	gonet "net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"njord/internal/asset"
	njordNet "njord/internal/net"
)

const maxReportSize = 4 * 1024

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the gateway")
	action := flag.String("action", "limit", "Action to perform: ['limit', 'market', 'close']")

	// Order parameters.
	class := flag.String("class", "XRD", "Asset class of the deposit")
	amountStr := flag.String("amount", "0", "Deposit amount")
	priceStr := flag.String("price", "0", "Limit price (quote per base)")

	// Close parameters.
	keyStr := flag.String("key", "", "Order key to close")

	flag.Parse()

	conn, err := gonet.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	var msg njordNet.Message
	switch strings.ToLower(*action) {
	case "limit":
		msg = njordNet.NewLimitOrderMessage{
			Class:  asset.Class(*class),
			Amount: parseDecimal(*amountStr, "amount"),
			Price:  parseDecimal(*priceStr, "price"),
		}
	case "market":
		msg = njordNet.NewMarketOrderMessage{
			Class:  asset.Class(*class),
			Amount: parseDecimal(*amountStr, "amount"),
		}
	case "close":
		key, err := uuid.Parse(*keyStr)
		if err != nil {
			log.Fatalf("Invalid -key %q: %v", *keyStr, err)
		}
		msg = njordNet.CloseOrderMessage{OrderKey: key}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	if _, err := conn.Write(msg.Serialize()); err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}
	fmt.Printf("-> Sent %s request\n", strings.ToUpper(*action))

	readReport(conn)
}

func parseDecimal(s, name string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid -%s %q: %v", name, s, err)
	}
	return d
}

// readReport reads and prints the gateway's answer. The gateway writes one
// report per request, so a single read suffices.
func readReport(conn gonet.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(30 * time.Second)); err != nil {
		log.Fatalf("Failed setting read deadline: %v", err)
	}

	buffer := make([]byte, maxReportSize)
	n, err := conn.Read(buffer)
	if err != nil {
		log.Fatalf("Connection lost: %v", err)
	}

	report, err := njordNet.ParseReport(buffer[:n])
	if err != nil {
		log.Fatalf("Failed to parse report: %v", err)
	}

	switch report.TypeOf {
	case njordNet.OrderPlacedReport:
		fmt.Printf("\n[PLACED] Order key: %s\n", report.OrderKey)
	case njordNet.OrderClosedReport:
		fmt.Printf("\n[CLOSED] Refund: %s %s | Traded: %s %s\n",
			report.Refund.Amount, report.Refund.Class,
			report.Traded.Amount, report.Traded.Class)
	case njordNet.MarketResultReport:
		fmt.Printf("\n[EXECUTED] Unspent: %s %s", report.Unspent.Amount, report.Unspent.Class)
		if report.HasProceeds {
			fmt.Printf(" | Proceeds: %s %s", report.Proceeds.Amount, report.Proceeds.Class)
		}
		fmt.Println()
	case njordNet.ErrorReport:
		fmt.Printf("\n[SERVER ERROR] %s\n", report.Err)
		os.Exit(1)
	}
}
