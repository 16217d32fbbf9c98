package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/hyeonwoo/railbot/internal/model"
)

// The mobile API of the reservation provider.  Endpoints and magic constants
// follow the public mobile app protocol: every call is a GET with form-style
// query parameters against a classes/ servlet, authenticated by the session
// cookie obtained at login.
const (
	korailBaseURL = "https://smart.letskorail.com/classes"

	korailDevice  = "AD"
	korailVersion = "190617001"
	korailKey     = "korail1234567890"

	loginPath   = "/com.korail.mobile.login.Login"
	searchPath  = "/com.korail.mobile.seatMovie.ScheduleView"
	reservePath = "/com.korail.mobile.certification.TicketReservation"
)

// Result codes the servlets answer with.  SUCC/FAIL arrive in strResult;
// the h_msg_cd field narrows a FAIL down.
const (
	resultSuccess = "SUCC"

	codeSoldOut = "P058"
)

// noResultCodes are the h_msg_cd values meaning "no train matched", which is
// an expected answer rather than an error.
var noResultCodes = map[string]bool{
	"P100":      true,
	"WRG000000": true,
	"WRD000061": true,
	"W123333":   true,
}

// KorailClient talks to the provider's mobile API.  It owns a cookie jar so
// the login session sticks to this client only.  KorailClient is not safe
// for concurrent use; each worker constructs its own via NewKorailClient.
type KorailClient struct {
	httpc    *http.Client
	baseURL  string
	loggedIn bool
}

// NewKorailClient returns an unauthenticated client.  Pass it as the
// provider.Factory when wiring the real service.
func NewKorailClient() Client {
	jar, _ := cookiejar.New(nil)
	return &KorailClient{
		httpc: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
		baseURL: korailBaseURL,
	}
}

// serverResponse is the envelope shared by every servlet answer.
type serverResponse struct {
	Result  string `json:"strResult"`
	MsgCode string `json:"h_msg_cd"`
	MsgText string `json:"h_msg_txt"`
}

func (r serverResponse) ok() bool { return r.Result == resultSuccess }

// Login authenticates with the provider.  On success the session cookie is
// stored in the client's jar and subsequent Search/Reserve calls are
// authenticated.
func (c *KorailClient) Login(ctx context.Context, loginID, loginSecret string) error {
	// txtInputFlg 2 selects phone-number login, the only shape the
	// conversation layer accepts.
	params := url.Values{
		"Device":      {korailDevice},
		"Version":     {korailVersion},
		"Key":         {korailKey},
		"txtInputFlg": {"2"},
		"txtMemberNo": {loginID},
		"txtPwd":      {loginSecret},
	}
	var resp struct {
		serverResponse
		MemberName string `json:"strCustNm"`
	}
	if err := c.call(ctx, loginPath, params, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		c.loggedIn = false
		return fmt.Errorf("provider: login rejected: %s", resp.MsgText)
	}
	c.loggedIn = true
	return nil
}

// Search lists trains matching the query, ordered by departure time.  A
// query with no matching trains returns ErrNoResults.
func (c *KorailClient) Search(ctx context.Context, q SearchQuery) ([]TrainOption, error) {
	params := url.Values{
		"Device":        {korailDevice},
		"Version":       {korailVersion},
		"Key":           {korailKey},
		"txtGoStart":    {q.Origin},
		"txtGoEnd":      {q.Destination},
		"txtGoAbrdDt":   {q.DepartureDate},
		"txtGoHour":     {q.DepartureTime},
		"txtTrnGpCd":    {trainGroupCode(q.TrainClass)},
		"txtPsgFlg_1":   {"1"}, // one adult
		"txtSeatAttCd":  {"015"},
		"radJobId":      {"1"},
		"txtCardPsgCnt": {"0"},
	}
	var resp struct {
		serverResponse
		TrnInfos struct {
			TrnInfo []struct {
				TrainNo     string `json:"h_trn_no"`
				TrainType   string `json:"h_trn_clsf_nm"`
				DepDate     string `json:"h_dpt_dt"`
				DepTime     string `json:"h_dpt_tm"`
				ArrTime     string `json:"h_arv_tm"`
				DepStation  string `json:"h_dpt_rs_stn_nm"`
				ArrStation  string `json:"h_arv_rs_stn_nm"`
				GeneralSeat string `json:"h_gen_rsv_cd"`
				SpecialSeat string `json:"h_spe_rsv_cd"`
			} `json:"trn_info"`
		} `json:"trn_infos"`
	}
	if err := c.call(ctx, searchPath, params, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		if noResultCodes[resp.MsgCode] {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("provider: search failed: %s %s", resp.MsgCode, resp.MsgText)
	}
	opts := make([]TrainOption, 0, len(resp.TrnInfos.TrnInfo))
	for _, t := range resp.TrnInfos.TrnInfo {
		opts = append(opts, TrainOption{
			TrainNo:        t.TrainNo,
			TrainType:      t.TrainType,
			DepartureDate:  t.DepDate,
			DepartureTime:  t.DepTime,
			ArrivalTime:    t.ArrTime,
			Origin:         t.DepStation,
			Destination:    t.ArrStation,
			HasGeneralSeat: t.GeneralSeat == "11",
			HasSpecialSeat: t.SpecialSeat == "11",
		})
	}
	if len(opts) == 0 {
		return nil, ErrNoResults
	}
	return opts, nil
}

// Reserve places a reservation for one train.  A train whose seats were
// taken between search and reserve returns ErrSoldOut.
func (c *KorailClient) Reserve(ctx context.Context, opt TrainOption, pref model.SeatPreference) (ReservationDetails, error) {
	seatClass, ok := pickSeatClass(opt, pref)
	if !ok {
		return ReservationDetails{}, ErrSoldOut
	}
	params := url.Values{
		"Device":       {korailDevice},
		"Version":      {korailVersion},
		"Key":          {korailKey},
		"txtTrnNo":     {opt.TrainNo},
		"txtJrnyTpCd":  {"11"}, // one-way
		"txtJrnySqno":  {"001"},
		"txtGoAbrdDt":  {opt.DepartureDate},
		"txtGoHour":    {opt.DepartureTime},
		"txtGoStart":   {opt.Origin},
		"txtGoEnd":     {opt.Destination},
		"txtPsrmClCd":  {seatClass},
		"txtPsgTpCd1":  {"1"},
		"txtCompaCnt1": {"1"},
	}
	var resp struct {
		serverResponse
		ReservationID string `json:"h_pnr_no"`
	}
	if err := c.call(ctx, reservePath, params, &resp); err != nil {
		return ReservationDetails{}, err
	}
	if !resp.ok() {
		if resp.MsgCode == codeSoldOut {
			return ReservationDetails{}, ErrSoldOut
		}
		return ReservationDetails{}, fmt.Errorf("provider: reserve failed: %s %s", resp.MsgCode, resp.MsgText)
	}
	label := "general"
	if seatClass == "2" {
		label = "special"
	}
	return ReservationDetails{
		ReservationID: resp.ReservationID,
		TrainNo:       opt.TrainNo,
		DepartureDate: opt.DepartureDate,
		DepartureTime: opt.DepartureTime,
		Origin:        opt.Origin,
		Destination:   opt.Destination,
		SeatClass:     label,
	}, nil
}

// call performs one GET against a servlet and decodes the JSON body.
func (c *KorailClient) call(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Dalvik/2.1.0 (Linux; U; Android 14)")
	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("provider: request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("provider: unexpected status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("provider: decode failed: %w", err)
	}
	return nil
}

// trainGroupCode maps the menu choice onto the provider's train group code.
func trainGroupCode(tc model.TrainClass) string {
	if tc == model.TrainClassHighSpeedOnly {
		return "100" // KTX group
	}
	return "109" // all train types
}

// pickSeatClass resolves the seat preference against the availability flags
// of a concrete train.  The second return value is false when no acceptable
// class has seats, which the caller reports as sold out.
func pickSeatClass(opt TrainOption, pref model.SeatPreference) (string, bool) {
	const (
		general = "1"
		special = "2"
	)
	switch pref {
	case model.SeatGeneralOnly:
		if opt.HasGeneralSeat {
			return general, true
		}
	case model.SeatSpecialOnly:
		if opt.HasSpecialSeat {
			return special, true
		}
	case model.SeatSpecialFirst:
		if opt.HasSpecialSeat {
			return special, true
		}
		if opt.HasGeneralSeat {
			return general, true
		}
	default: // SeatGeneralFirst
		if opt.HasGeneralSeat {
			return general, true
		}
		if opt.HasSpecialSeat {
			return special, true
		}
	}
	return "", false
}
