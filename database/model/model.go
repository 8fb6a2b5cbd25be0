// Package model defines the persistent entities of the hub.
package model

import (
	"fmt"
	"time"
)

type PublicationType string

const (
	PublicationNone               PublicationType = "none"
	PublicationJournalArticle     PublicationType = "journal_article"
	PublicationConferencePaper    PublicationType = "conference_paper"
	PublicationBook               PublicationType = "book"
	PublicationReport             PublicationType = "report"
	PublicationDataManagementPlan PublicationType = "data_management_plan"
	PublicationOther              PublicationType = "other"
)

var PublicationTypes = []PublicationType{
	PublicationNone,
	PublicationJournalArticle,
	PublicationConferencePaper,
	PublicationBook,
	PublicationReport,
	PublicationDataManagementPlan,
	PublicationOther,
}

func ParsePublicationType(s string) (PublicationType, bool) {
	if s == "" {
		return PublicationNone, true
	}
	for _, p := range PublicationTypes {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

type DataSet struct {
	Id           int        `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId       int        `json:"userId" gorm:"index;not null"`
	User         *User      `json:"-"`
	DSMetaDataId int        `json:"-" gorm:"not null"`
	DSMetaData   DSMetaData `json:"metadata"`
	Files        []Hubfile  `json:"files" gorm:"foreignKey:DataSetId"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"not null"`
}

// IsSynchronized reports whether the dataset has been deposited and got a DOI.
func (d *DataSet) IsSynchronized() bool {
	return d.DSMetaData.DatasetDoi != ""
}

// DoiURL is the local landing page of a synchronized dataset.
func (d *DataSet) DoiURL(host string) string {
	if !d.IsSynchronized() {
		return ""
	}
	return fmt.Sprintf("%s/doi/%s", host, d.DSMetaData.DatasetDoi)
}

// TotalSize returns the summed size of the dataset's files.
func (d *DataSet) TotalSize() int64 {
	var n int64
	for _, f := range d.Files {
		n += f.Size
	}
	return n
}

type DSMetaData struct {
	Id              int             `json:"id" gorm:"primaryKey;autoIncrement"`
	DepositionId    string          `json:"depositionId"`
	Title           string          `json:"title" gorm:"size:120;not null"`
	Description     string          `json:"description" gorm:"not null"`
	PublicationType PublicationType `json:"publicationType" gorm:"size:40;not null"`
	PublicationDoi  string          `json:"publicationDoi"`
	DatasetDoi      string          `json:"datasetDoi" gorm:"index"`
	Tags            string          `json:"tags"`
	Authors         []Author        `json:"authors" gorm:"foreignKey:DSMetaDataId"`
}

type Author struct {
	Id           int    `json:"id" gorm:"primaryKey;autoIncrement"`
	DSMetaDataId int    `json:"-" gorm:"index"`
	Name         string `json:"name" gorm:"size:120;not null"`
	Affiliation  string `json:"affiliation"`
	Orcid        string `json:"orcid"`
}

// Hubfile is one file stored for a dataset.
type Hubfile struct {
	Id        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	DataSetId int    `json:"-" gorm:"index;not null"`
	Name      string `json:"name" gorm:"not null"`
	Checksum  string `json:"checksum" gorm:"not null"`
	Size      int64  `json:"size" gorm:"not null"`
}

type DatasetComment struct {
	Id        int       `json:"id" gorm:"primaryKey;autoIncrement"`
	DataSetId int       `json:"datasetId" gorm:"index;not null"`
	UserId    int       `json:"userId" gorm:"not null"`
	User      *User     `json:"-"`
	Content   string    `json:"content" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	IsVisible bool      `json:"isVisible" gorm:"not null"`
}

// DSDownloadRecord counts one download per user, dataset and cookie.
type DSDownloadRecord struct {
	Id             int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId         *int      `json:"userId"`
	DataSetId      int       `json:"datasetId" gorm:"index;not null"`
	DownloadDate   time.Time `json:"downloadDate" gorm:"index;not null"`
	DownloadCookie string    `json:"downloadCookie" gorm:"size:36;not null"`
}

// DSViewRecord counts one view per user, dataset and cookie.
type DSViewRecord struct {
	Id         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId     *int      `json:"userId"`
	DataSetId  int       `json:"datasetId" gorm:"index;not null"`
	ViewDate   time.Time `json:"viewDate" gorm:"not null"`
	ViewCookie string    `json:"viewCookie" gorm:"size:36;not null"`
}

// DOIMapping redirects a retired DOI to its replacement.
type DOIMapping struct {
	Id            int    `json:"id" gorm:"primaryKey;autoIncrement"`
	DatasetDoiOld string `json:"datasetDoiOld" gorm:"uniqueIndex;not null"`
	DatasetDoiNew string `json:"datasetDoiNew" gorm:"not null"`
}
