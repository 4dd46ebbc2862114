package server

import (
	"net/http"

	"trustpay/internal/actions"
	"trustpay/internal/config"
	"trustpay/internal/notify"
	"trustpay/internal/session"
	"trustpay/internal/wallet"
)

type sessionResponse struct {
	Account       string           `json:"account,omitempty"`
	ShortAccount  string           `json:"shortAccount,omitempty"`
	ChainID       uint64           `json:"chainId,omitempty"`
	IsConnected   bool             `json:"isConnected"`
	IsConnecting  bool             `json:"isConnecting"`
	OnTargetChain bool             `json:"onTargetChain"`
	ExplorerURL   string           `json:"explorerUrl,omitempty"`
	Balances      session.Balances `json:"balances"`
	// Processing is true for an area while one of its actions is in flight.
	Processing map[string]bool `json:"processing"`
}

func (s *Server) sessionView(state wallet.ConnectionState) sessionResponse {
	return sessionResponse{
		Account:       state.Account,
		ShortAccount:  wallet.FormatAddress(state.Account),
		ChainID:       state.ChainID,
		IsConnected:   state.IsConnected,
		IsConnecting:  state.IsConnecting,
		OnTargetChain: state.IsConnected && state.OnChain(s.cfg.Chain.ID),
		ExplorerURL:   s.cfg.Chain.AddressURL(state.Account),
		Balances:      s.session.Balances(),
		Processing: map[string]bool{
			s.employer.Name(): s.employer.IsProcessing(),
			s.employee.Name(): s.employee.IsProcessing(),
		},
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	state, err := s.session.Connector().Connect(r.Context())
	if err != nil {
		s.metrics.incSession("connect_failed")
		s.writeError(w, err)
		return
	}
	s.metrics.incSession("connected")
	s.cookies.Issue(w, state.Account)

	// balances are best effort; the connection already succeeded
	_, _ = s.session.RefreshBalances(r.Context(), s.client)
	writeJSON(w, http.StatusOK, s.sessionView(s.session.Connector().State()))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Connector().Disconnect()
	s.cookies.Clear(w)
	s.metrics.incSession("disconnected")
	writeJSON(w, http.StatusOK, s.sessionView(s.session.Connector().State()))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionView(s.session.Connector().State()))
}

func (s *Server) handleResolveRole(w http.ResponseWriter, r *http.Request) {
	account, err := s.session.Account()
	if err != nil {
		s.writeError(w, err)
		return
	}
	role, err := s.client.ResolveRole(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := struct {
		Account  string `json:"account"`
		Role     string `json:"role"`
		Redirect string `json:"redirect,omitempty"`
	}{Account: account.Hex(), Role: role.String()}
	switch role {
	case actions.RoleEmployer:
		resp.Redirect = "/employer"
	case actions.RoleEmployee:
		resp.Redirect = "/employee"
	}
	writeJSON(w, http.StatusOK, resp)
}

type chainResponse struct {
	config.ChainConfig
	HexID     string                   `json:"hexId"`
	Contracts config.ContractAddresses `json:"contracts"`
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chainResponse{
		ChainConfig: s.cfg.Chain,
		HexID:       s.cfg.Chain.HexID(),
		Contracts:   s.cfg.Contracts,
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	items := []notify.Notification{}
	if s.feed != nil {
		items = append(items, s.feed.Recent()...)
	}
	writeJSON(w, http.StatusOK, struct {
		Notifications []notify.Notification `json:"notifications"`
	}{items})
}
