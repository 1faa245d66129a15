package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/catalogfi/swapboard/daemon/rpc"
	"github.com/catalogfi/swapboard/pkg/board"
	"github.com/catalogfi/swapboard/pkg/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	url := parseEnv("SWAPD_URL", "http://127.0.0.1:9014")
	secret := parseRequiredEnv("RPC_SECRET")

	switch os.Args[1] {
	case "offers":
		printOffers(call(url, secret, "allOffers", nil), nil)
	case "feasible":
		printOffers(call(url, secret, "feasibleOffers", nil), nil)
	case "board":
		feasible := map[string]bool{}
		var fit []board.Offer
		decode(call(url, secret, "feasibleOffers", nil), &fit)
		for _, offer := range fit {
			feasible[offer.ID] = true
		}
		printOffers(call(url, secret, "allOffers", nil), feasible)
	case "transactions":
		printTransactions(url, secret)
	case "active":
		var counts struct {
			Counts map[string]uint32 `json:"counts"`
			Total  int               `json:"total"`
		}
		decode(call(url, secret, "activeSwapCount", nil), &counts)
		for asset, count := range counts.Counts {
			fmt.Printf("%-10v %d\n", asset, count)
		}
		fmt.Printf("%-10v %d\n", "total", counts.Total)
	case "cancel-offer":
		call(url, secret, "cancelOffer", idParams())
		color.Yellow("cancel requested")
	case "cancel-tx":
		call(url, secret, "cancelTx", idParams())
		color.Yellow("cancel requested")
	case "delete-tx":
		call(url, secret, "deleteTx", idParams())
		color.Yellow("delete requested")
	default:
		usage()
	}
}

func usage() {
	fmt.Println("usage: swapctl <offers|feasible|board|transactions|active|cancel-offer <id>|cancel-tx <id>|delete-tx <id>>")
	os.Exit(1)
}

func idParams() json.RawMessage {
	if len(os.Args) < 3 {
		usage()
	}
	params, _ := json.Marshal(map[string]string{"id": os.Args[2]})
	return params
}

func printOffers(result json.RawMessage, feasible map[string]bool) {
	var offers []board.Offer
	decode(result, &offers)

	for _, offer := range offers {
		line := fmt.Sprintf("%-12.12v %-10v native=%v counter=%v expires=%v",
			offer.ID, offer.Asset, offer.NativeAmount, offer.CounterAmount,
			offer.ExpiresAt.Format(time.RFC3339))
		switch {
		case offer.IsOwn:
			color.Cyan(line)
		case feasible == nil || feasible[offer.ID]:
			color.Green(line)
		default:
			color.Red(line)
		}
	}
}

func printTransactions(url, secret string) {
	var txs []model.SwapTransaction
	decode(call(url, secret, "transactions", nil), &txs)

	for _, tx := range txs {
		line := fmt.Sprintf("%-12.12v %-10v %v", tx.ID, tx.Asset, tx.Status)

		params, _ := json.Marshal(map[string]string{"id": tx.ID})
		var status struct {
			Message *struct {
				Key      string        `json:"key"`
				TimeLeft time.Duration `json:"time_left"`
			} `json:"message"`
		}
		decode(call(url, secret, "lifecycleStatus", params), &status)
		if status.Message != nil {
			line += fmt.Sprintf("  [%v %v]", status.Message.Key, status.Message.TimeLeft)
		}

		if tx.IsActive() {
			color.Green(line)
		} else {
			fmt.Println(line)
		}
	}
}

func call(url, secret, method string, params json.RawMessage) json.RawMessage {
	token, err := rpc.Token(secret, time.Minute)
	if err != nil {
		fatal(err)
	}

	body, err := json.Marshal(rpc.Request{
		Version: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	var rpcResp rpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		fatal(err)
	}
	if rpcResp.Error != nil {
		fatal(fmt.Errorf("%v: %v", rpcResp.Error.Message, rpcResp.Error.Data))
	}
	return rpcResp.Result
}

func decode(result json.RawMessage, out any) {
	if err := json.Unmarshal(result, out); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	color.Red("swapctl: %v", err)
	os.Exit(1)
}

func parseEnv(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}

func parseRequiredEnv(name string) string {
	val := os.Getenv(name)
	if val == "" {
		panic(fmt.Sprintf("env '%v' not set", name))
	}
	return val
}
