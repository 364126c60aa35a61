package dto

type SendUtteranceRequest struct {
	Utterance string `json:"utterance" validate:"required"`
}

type SelectAreaRequest struct {
	AreaId string `json:"area_id" validate:"required"`
}

type SelectFollowUpRequest struct {
	OptionId string `json:"option_id" validate:"required"`
}

type SwitchCompanyRequest struct {
	Company string `json:"company" validate:"required"`
}

type RetryRequest struct {
	AreaId string `json:"area_id" validate:"required"`
}

type ConsentRequest struct {
	Company string `json:"company" validate:"required"`
	Granted bool   `json:"granted"`
}

type AreaResponse struct {
	Id    string   `json:"id"`
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}
